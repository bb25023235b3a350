package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-qms/internal/config"
	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/cache"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
)

// Services 服务集合
type Services struct {
	Recipe       *RecipeService
	Blending     *BlendingService
	Traceability *TraceabilityService
	Inspection   *InspectionService
	Export       *ExportService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端（报表归档，可缺省）
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio init failed, report archiving disabled", zap.Error(err))
			minioClient = nil
		}
	}

	// LOT准入校验走Redis旁路缓存，Redis异常时自动退回数据库
	lotCache := cache.NewLotCache(repos.Inspection, rdb, cfg.Cache.LotTTL, logger)
	validator := blending.NewValidator(lotCache)

	blendingSvc := NewBlendingService(repos.BlendingWork, repos.Recipe, repos.MaterialInput, validator)
	blendingSvc.SetActivityLogRepo(repos.ActivityLog)

	inspectionSvc := NewInspectionService(repos.Inspection, lotCache)
	inspectionSvc.SetActivityLogRepo(repos.ActivityLog)

	return &Services{
		Recipe:       NewRecipeService(repos.Recipe),
		Blending:     blendingSvc,
		Traceability: NewTraceabilityService(repos.BlendingWork, repos.Recipe, repos.MaterialInput, repos.Inspection),
		Inspection:   inspectionSvc,
		Export:       NewExportService(repos.BlendingWork, repos.Recipe, repos.MaterialInput, minioClient, cfg.MinIO.Bucket),
	}
}
