package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateServerID 生成服务器实例ID
// 优先使用配置值，其次环境变量 NETFRONT_SERVER_ID，否则生成 netfront-{hostname}-{uuid前8位}
func GenerateServerID(configured string) string {
	if configured != "" {
		return configured
	}
	if serverID := os.Getenv("NETFRONT_SERVER_ID"); serverID != "" {
		return serverID
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("netfront-%s-%s", hostname, uuid.New().String()[:8])
}
