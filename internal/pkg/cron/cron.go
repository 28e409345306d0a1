package cron

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/internal/repository"
)

// Service 定时清理服务。临时图片目录里存放 base64 落盘和 URL 下载的图片，
// results 子目录存放未上传 OSS 的结果归档。
type Service struct {
	jobRepo     *repository.JobRepository
	tempDir     string
	expireHours int
	stopChan    chan struct{}
}

func NewService(jobRepo *repository.JobRepository, tempDir string, expireHours int) *Service {
	return &Service{
		jobRepo:     jobRepo,
		tempDir:     tempDir,
		expireHours: expireHours,
		stopChan:    make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (temp image cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanupAll()
		}
	}
}

func (s *Service) cleanupAll() {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 1
	}
	expireDuration := time.Duration(expireHours) * time.Hour

	c1 := s.cleanupTempImages(expireDuration)
	c2 := s.cleanupMigratedResults()

	total := c1 + c2
	if total > 0 {
		log.Printf("Cleanup summary: images=%d, results=%d", c1, c2)
	}
}

// cleanupTempImages 清理过期的临时图片文件。正常情况任务结束就删，
// 这里兜底处理 worker 崩溃留下的残留。
func (s *Service) cleanupTempImages(expireDuration time.Duration) int {
	if s.tempDir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		log.Printf("Cleanup images: failed to read dir %s: %v", s.tempDir, err)
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		// 跳过结果归档目录
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			filePath := filepath.Join(s.tempDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("Cleanup images: failed to remove %s: %v", filePath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}

// cleanupMigratedResults 清理已迁移到 OSS 的本地结果归档
func (s *Service) cleanupMigratedResults() int {
	resultDir := filepath.Join(s.tempDir, "results")
	entries, err := os.ReadDir(resultDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup results: failed to read dir %s: %v", resultDir, err)
		}
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		jobID, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}

		job, err := s.jobRepo.GetByID(jobID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}

		// 任务不存在或归档已在 OSS 时，本地文件是残留
		if job != nil && strings.HasPrefix(job.ResultURL, "local://") {
			continue
		}

		filePath := filepath.Join(resultDir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			log.Printf("Cleanup results: failed to remove %s: %v", filePath, err)
		} else {
			cleaned++
		}
	}
	return cleaned
}
