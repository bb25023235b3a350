package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

// LotCache 来料检验结论的Redis旁路缓存，实现 blending.Ledger。
// 缓存只是提速手段：Redis任何异常都直接退回底层台账查询，
// 检验结论变更时由检验侧调用 Invalidate 立即失效。
type LotCache struct {
	ledger blending.Ledger
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewLotCache(ledger blending.Ledger, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *LotCache {
	return &LotCache{
		ledger: ledger,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// 缓存负结果的占位值，避免不存在的LOT反复穿透到数据库
const missMarker = "__miss__"

func lotKey(powderName, lotNumber string) string {
	return fmt.Sprintf("qms:lot:%s:%s", powderName, lotNumber)
}

// FindByPowderAndLot 先查Redis，未命中或异常时回源台账并回填
func (c *LotCache) FindByPowderAndLot(ctx context.Context, powderName, lotNumber string) (*entity.InspectionRecord, error) {
	key := lotKey(powderName, lotNumber)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if cached == missMarker {
			return nil, blending.ErrLedgerNotFound
		}
		var rec entity.InspectionRecord
		if jsonErr := json.Unmarshal([]byte(cached), &rec); jsonErr == nil {
			return &rec, nil
		}
		// 缓存内容损坏，清掉回源
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("lot cache read failed, falling back to db",
			zap.String("key", key), zap.Error(err))
	}

	rec, err := c.ledger.FindByPowderAndLot(ctx, powderName, lotNumber)
	if err != nil {
		if err == blending.ErrLedgerNotFound {
			c.rdb.Set(ctx, key, missMarker, c.ttl)
		}
		return nil, err
	}

	if data, jsonErr := json.Marshal(rec); jsonErr == nil {
		c.rdb.Set(ctx, key, data, c.ttl)
	}
	return rec, nil
}

// FindByLot 异种粉末提示路径，走得少，不缓存
func (c *LotCache) FindByLot(ctx context.Context, lotNumber string) (*entity.InspectionRecord, error) {
	return c.ledger.FindByLot(ctx, lotNumber)
}

// Invalidate 检验结论变更时失效对应缓存项
func (c *LotCache) Invalidate(ctx context.Context, powderName, lotNumber string) {
	if err := c.rdb.Del(ctx, lotKey(powderName, lotNumber)).Err(); err != nil {
		c.logger.Warn("lot cache invalidate failed",
			zap.String("powder", powderName), zap.String("lot", lotNumber), zap.Error(err))
	}
}
