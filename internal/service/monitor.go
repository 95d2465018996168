package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vitalhub/internal/alarmstore"
	"vitalhub/internal/cache"
	"vitalhub/internal/common/database"
	mqttcommon "vitalhub/internal/common/mqtt"
	rediscommon "vitalhub/internal/common/redis"
	"vitalhub/internal/config"
	"vitalhub/internal/httpapi"
	"vitalhub/internal/hub"
	"vitalhub/internal/ingest"
	"vitalhub/internal/models"
	"vitalhub/internal/occupancy"
	"vitalhub/internal/repository"
	"vitalhub/internal/threshold"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 个人未配置比例阈值时的出厂默认（可被 alert_config 表覆盖）
const (
	defaultHeartRatioUpper  = 120
	defaultHeartRatioLower  = 80
	defaultBreathRatioUpper = 130
	defaultBreathRatioLower = 70
)

// MonitorService 监护服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	// 各层组件
	roomRepo        *repository.RoomRepository
	personnelRepo   *repository.PersonnelRepository
	alertConfigRepo *repository.AlertConfigRepository
	alarmHistory    *repository.AlarmHistoryRepository

	registry  *ingest.Registry
	realtime  *cache.RealtimeCache
	occupancy *occupancy.StateMachine
	hub       *hub.Hub
	alarms    *alarmstore.Store
	engine    *threshold.Engine
	consumer  *ingest.Consumer
	watchdog  *ingest.Watchdog

	httpServer *http.Server
}

// NewMonitorService 创建监护服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	s, err := assemble(cfg, logger, db, redisClient, mqttClient)
	if err != nil {
		return nil, err
	}
	s.mqttClient = mqttClient
	return s, nil
}

// assemble 在既有连接上组装服务（测试用 sqlmock/miniredis 注入）
func assemble(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	redisClient *redis.Client,
	mqttClient ingest.Subscriber,
) (*MonitorService, error) {
	ctx := context.Background()

	// Repository 层
	roomRepo := repository.NewRoomRepository(db, logger)
	personnelRepo := repository.NewPersonnelRepository(db, logger)
	alertConfigRepo := repository.NewAlertConfigRepository(db, logger)
	alarmHistory := repository.NewAlarmHistoryRepository(db, logger)

	// 全局报警配置：服务默认值 + alert_config 表覆盖
	defaults := models.AlertConfig{
		AlertPeriod:           cfg.Alarm.AlertPeriod,
		CriticalMarginPercent: cfg.Alarm.CriticalMarginPercent,
		HeartBeatRatioUpper:   defaultHeartRatioUpper,
		HeartBeatRatioLower:   defaultHeartRatioLower,
		BreathRatioUpper:      defaultBreathRatioUpper,
		BreathRatioLower:      defaultBreathRatioLower,
	}
	alertConfig, err := alertConfigRepo.LoadAlertConfig(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert config: %w", err)
	}

	// 核心组件
	h := hub.NewHub(logger)
	state := threshold.NewStateManager(cfg, redisClient, logger)
	engine := threshold.NewEngine(alertConfig, state, logger)
	alarms := alarmstore.NewStore(h, alarmHistory, logger)
	registry := ingest.NewRegistry(logger)
	stateMachine := occupancy.NewStateMachine(logger)
	realtime := cache.NewRealtimeCache(cfg, redisClient, logger)

	s := &MonitorService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		logger:          logger,
		roomRepo:        roomRepo,
		personnelRepo:   personnelRepo,
		alertConfigRepo: alertConfigRepo,
		alarmHistory:    alarmHistory,
		registry:        registry,
		realtime:        realtime,
		occupancy:       stateMachine,
		hub:             h,
		alarms:          alarms,
		engine:          engine,
	}

	s.consumer = ingest.NewConsumer(cfg, mqttClient, registry, realtime, engine, alarms, h, logger)
	s.watchdog = ingest.NewWatchdog(registry, h, cfg.Radar.NetworkTimeout, cfg.Radar.WatchdogInterval, logger)

	if err := s.loadState(ctx); err != nil {
		return nil, err
	}

	// HTTP/WebSocket 路由
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(
		httpapi.NewRoomHandler(s, logger),
		httpapi.NewAlarmHandler(s, logger),
		httpapi.NewWSHandler(h, cfg.Server.WSQueueSize, cfg.Server.WSWriteTimeout, cfg.Server.WSPongTimeout, logger),
	)
	s.httpServer = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	return s, nil
}

// loadState 从数据库恢复房间与占用状态
func (s *MonitorService) loadState(ctx context.Context) error {
	rooms, err := s.roomRepo.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	personnel, err := s.personnelRepo.ListPersonnel(ctx)
	if err != nil {
		return fmt.Errorf("failed to load personnel: %w", err)
	}

	roomIDs := make([]int64, 0, len(rooms))
	var bindings []occupancy.Binding
	occupants := make(map[int64]*models.Personnel)

	for i := range rooms {
		roomIDs = append(roomIDs, rooms[i].ID)
		if rooms[i].OccupantID == nil {
			continue
		}
		pid := *rooms[i].OccupantID
		bindings = append(bindings, occupancy.Binding{RoomID: rooms[i].ID, PersonnelID: pid})

		// 入住人员需要完整的阈值与作息配置
		p, err := s.personnelRepo.GetPersonnel(ctx, pid)
		if err != nil {
			return fmt.Errorf("failed to load occupant %d: %w", pid, err)
		}
		occupants[pid] = p
	}

	personnelIDs := make([]int64, 0, len(personnel))
	for i := range personnel {
		personnelIDs = append(personnelIDs, personnel[i].ID)
	}

	s.registry.Load(rooms, occupants)
	s.occupancy.Load(roomIDs, personnelIDs, bindings)

	// 重启后用 Redis 缓存回填实时字段，看板首屏不必等下一帧雷达数据
	for i := range rooms {
		sample, err := s.realtime.GetRealtime(ctx, rooms[i].ID)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				s.logger.Warn("Failed to restore realtime sample",
					zap.Int64("room_id", rooms[i].ID),
					zap.Error(err),
				)
			}
			continue
		}
		s.registry.ApplySample(rooms[i].RadarSN, sample)
	}

	s.logger.Info("State loaded",
		zap.Int("rooms", len(rooms)),
		zap.Int("personnel", len(personnel)),
		zap.Int("occupied", len(bindings)),
	)
	return nil
}

// Start 启动服务（非阻塞，各组件在各自 goroutine 中运行）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.String("addr", s.config.Server.Addr),
	)

	go func() {
		if err := s.consumer.Start(ctx); err != nil {
			s.logger.Error("Radar consumer exited", zap.Error(err))
		}
	}()
	go s.watchdog.Run(ctx)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server exited", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	s.hub.CloseAll()
	s.consumer.Stop()
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
