package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fitsuite/licensehub/internal/cache"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Cache  cache.PlanCache
	Policy *config.PolicyHolder
}

type Reader struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	cache  cache.PlanCache
	policy *config.PolicyHolder
}

func NewReader(p Params) domain.Reader {
	return &Reader{
		db:     p.DB,
		log:    p.Log.Named("plan.reader"),
		repo:   p.Repo,
		cache:  p.Cache,
		policy: p.Policy,
	}
}

func (r *Reader) Get(ctx context.Context, planID string) (domain.Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return domain.Plan{}, domain.ErrPlanNotFound
	}

	policy := r.policy.Get()

	raw, hit := r.cachedAttributes(ctx, planID)
	if !hit {
		attrs, err := r.repo.FindAttributes(ctx, r.db, planID)
		if err != nil {
			return domain.Plan{}, err
		}
		raw = attrs
		if r.cache != nil {
			r.cache.Set(ctx, planID, raw, policy.PlanTTL)
		}
	}

	attrs, err := decodeAttributes(raw)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("decode plan %s: %w", planID, err)
	}

	return domain.Normalize(planID, attrs, policy.License.DurationDays), nil
}

func (r *Reader) cachedAttributes(ctx context.Context, planID string) ([]byte, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, ok := r.cache.Get(ctx, planID)
	if !ok {
		return nil, false
	}
	if _, err := decodeAttributes(raw); err != nil {
		r.log.Warn("discarding unreadable cached plan", zap.String("plan_id", planID), zap.Error(err))
		return nil, false
	}
	return raw, true
}

func decodeAttributes(raw []byte) (map[string]any, error) {
	attrs := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return attrs, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
