package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/database"
	"github.com/qs3c/food_go_server/internal/model"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	imageExpire  = flag.Int("image-expire", 24, "Hours to keep temp image files")
	resultExpire = flag.Int("result-expire", 7, "Days to keep local result files")
	cleanImages  = flag.Bool("clean-images", true, "Clean expired temp images")
	cleanResults = flag.Bool("clean-results", true, "Clean results migrated to OSS")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	tempDir := cfg.Upload.TempDir
	totalSize := int64(0)
	deletedSize := int64(0)
	totalFiles := 0
	deletedFiles := 0

	// 1. 清理过期的临时图片
	if *cleanImages {
		log.Printf("\n📦 Cleaning expired temp images (older than %d hours)...", *imageExpire)
		size, count := cleanExpiredImages(tempDir, *imageExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 2. 清理已迁移到 OSS 的本地结果文件
	if *cleanResults {
		log.Printf("\n📊 Cleaning results migrated to OSS...")
		size, count := cleanMigratedResults(db, tempDir, *resultExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 3. 统计当前占用
	log.Println("\n📈 Scanning current disk usage...")
	filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalSize += info.Size()
			totalFiles++
		}
		return nil
	})

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Total files: %d", totalFiles)
	log.Printf("Total size: %s", formatSize(totalSize))
	log.Printf("Deleted files: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - No files were actually deleted")
		log.Println("   Run with -dry-run=false to actually delete files")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanExpiredImages 清理过期的临时图片文件
func cleanExpiredImages(tempDir string, expireHours int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		log.Printf("Failed to read temp dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		// 跳过 results 目录
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			filePath := filepath.Join(tempDir, entry.Name())
			log.Printf("  - %s (%s, modified %s)", entry.Name(), formatSize(info.Size()), info.ModTime().Format("2006-01-02 15:04"))
			totalSize += info.Size()
			count++

			if !dryRun {
				if err := os.Remove(filePath); err != nil {
					log.Printf("    Failed to remove: %v", err)
				}
			}
		}
	}
	return totalSize, count
}

// cleanMigratedResults 清理结果已在 OSS 上、超过保留期的本地归档文件
func cleanMigratedResults(db *gorm.DB, tempDir string, expireDays int, dryRun bool) (int64, int) {
	resultDir := filepath.Join(tempDir, "results")
	expireTime := time.Now().Add(-time.Duration(expireDays) * 24 * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(resultDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read result dir: %v", err)
		}
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		jobID, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(expireTime) {
			continue
		}

		// 结果仍只在本地的任务不能删
		var job model.AnalysisJob
		if err := db.First(&job, jobID).Error; err == nil && strings.HasPrefix(job.ResultURL, "local://") {
			continue
		}

		filePath := filepath.Join(resultDir, entry.Name())
		log.Printf("  - %s (%s)", entry.Name(), formatSize(info.Size()))
		totalSize += info.Size()
		count++

		if !dryRun {
			if err := os.Remove(filePath); err != nil {
				log.Printf("    Failed to remove: %v", err)
			}
		}
	}
	return totalSize, count
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
