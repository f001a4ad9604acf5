package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// PrefixStats 按目录统计（public/audios、public/cover-art ...）
type PrefixStats struct {
	Prefix  string
	Objects int64
	Size    int64
}

// ListObjects 列出存储桶中的对象并统计
func (s *MinioStore) ListObjects(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("检查存储桶是否存在失败: %w", err)
	}
	if !exists {
		return nil, nil, fmt.Errorf("存储桶 %s 不存在", s.bucket)
	}

	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, *toObjectInfo(object))
	}

	// 按最后修改时间倒序
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, stats, nil
}

// GroupByPrefix 按前 depth 级目录汇总对象
func GroupByPrefix(objects []ObjectInfo, depth int) []PrefixStats {
	byPrefix := make(map[string]*PrefixStats)
	for _, o := range objects {
		parts := strings.Split(o.Key, "/")
		n := depth
		if n > len(parts)-1 {
			n = len(parts) - 1
		}
		prefix := strings.Join(parts[:n], "/")
		if prefix == "" {
			prefix = "/"
		}
		ps, ok := byPrefix[prefix]
		if !ok {
			ps = &PrefixStats{Prefix: prefix}
			byPrefix[prefix] = ps
		}
		ps.Objects++
		ps.Size += o.Size
	}

	result := make([]PrefixStats, 0, len(byPrefix))
	for _, ps := range byPrefix {
		result = append(result, *ps)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Prefix < result[j].Prefix })
	return result
}

// FormatSize 将字节数格式化为可读字符串
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
