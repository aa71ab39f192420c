package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, filepath.FromSlash(filename)))
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return "/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, filename, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	return "/" + p.Config.MinioBucket + "/" + filename
}

// TrainingReport 完成训练后归档的报告
type TrainingReport struct {
	SessionID    string                   `json:"sessionId"`
	UserID       string                   `json:"userId"`
	TrainingType model.TrainingType       `json:"trainingType"`
	StartTime    time.Time                `json:"startTime"`
	EndTime      *time.Time               `json:"endTime"`
	PhaseData    model.PhaseData          `json:"phaseData"`
	Performance  model.PerformanceMetrics `json:"performanceMetrics"`
	OverallScore int                      `json:"overallScore"`
	Grade        string                   `json:"grade"`
	Status       model.SessionStatus      `json:"status"`
}

func NewTrainingReport(s *model.TrainingSession) TrainingReport {
	return TrainingReport{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		TrainingType: s.TrainingType,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		PhaseData:    s.Phases(),
		Performance:  s.Performance(),
		OverallScore: s.OverallScore,
		Grade:        s.Grade,
		Status:       s.Status,
	}
}

// ReportStorage 将训练报告写入存储
type ReportStorage struct {
	Provider StorageProvider
}

// NewReportStorage storage.type 为 none 时返回 nil，不归档
func NewReportStorage(cfg *config.StorageConfig) (*ReportStorage, error) {
	switch cfg.Type {
	case "", util.StorageNone:
		return nil, nil
	case util.StorageLocal:
		return &ReportStorage{Provider: &LocalStorageProvider{Config: cfg}}, nil
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		return &ReportStorage{Provider: p}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func ReportKey(s *model.TrainingSession) string {
	return path.Join("reports", s.UserID, s.SessionID+".json")
}

func (r *ReportStorage) Archive(ctx context.Context, session *model.TrainingSession) error {
	body, err := json.MarshalIndent(NewTrainingReport(session), "", "  ")
	if err != nil {
		return err
	}
	_, err = r.Provider.Upload(ctx, ReportKey(session), bytes.NewReader(body), int64(len(body)), util.MimeJSON)
	return err
}
