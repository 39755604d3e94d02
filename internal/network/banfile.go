package network

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticBan 封禁文件中的一条记录，TimeoutSeconds <= 0 为永久封禁
type StaticBan struct {
	Address        string `yaml:"address"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Reason         string `yaml:"reason"`
}

// BanFile 启动时加载的静态封禁列表
type BanFile struct {
	Bans []StaticBan `yaml:"bans"`
}

// LoadBanFile 读取 YAML 封禁文件，地址必须是合法 IP
func LoadBanFile(path string) (*BanFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ban file: %w", err)
	}
	var f BanFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unmarshal ban file: %w", err)
	}
	for i, ban := range f.Bans {
		if net.ParseIP(ban.Address) == nil {
			return nil, fmt.Errorf("ban file entry %d: invalid address %q", i, ban.Address)
		}
	}
	return &f, nil
}

// Apply 把静态封禁写入注册表，返回应用的条目数
func (f *BanFile) Apply(r *Registry) int {
	if f == nil {
		return 0
	}
	for _, ban := range f.Bans {
		r.BlockAddress(ban.Address, ban.TimeoutSeconds)
	}
	return len(f.Bans)
}
