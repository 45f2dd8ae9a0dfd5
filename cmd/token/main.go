// token 为本地调试签发JWT
//
//	go run ./cmd/token --user 1 --role admin
//	curl -H "Authorization: Bearer $(go run ./cmd/token -u 7)" localhost:8080/api/v1/cart
//
// 密钥、issuer、有效期读取与服务相同的配置文件，可用STOREFRONT_JWT_SECRET覆盖
package main

import (
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/xiebiao/storefront/internal/infrastructure/config"
	"github.com/xiebiao/storefront/pkg/jwt"
)

var roles = []string{jwt.RoleAdmin, jwt.RoleStaff, jwt.RoleCustomer}

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "配置文件路径")
		userID     = pflag.UintP("user", "u", 1, "用户ID")
		role       = pflag.StringP("role", "r", jwt.RoleCustomer, "角色：admin | staff | customer")
		expire     = pflag.Duration("expire", 0, "有效期，0表示使用配置中的jwt.access_token_expire")
	)
	pflag.Parse()

	if !slices.Contains(roles, *role) {
		log.Fatalf("未知角色 %q，可选：%v", *role, roles)
	}
	if *userID == 0 {
		log.Fatal("用户ID必须大于0")
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ttl := cfg.JWT.AccessTokenExpire
	if *expire > 0 {
		ttl = *expire
	}

	token, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, ttl).GenerateToken(*userID, *role)
	if err != nil {
		log.Fatalf("签发Token失败: %v", err)
	}

	fmt.Fprintln(os.Stdout, token.AccessToken)
	fmt.Fprintf(os.Stderr, "user_id=%d role=%s expires_in=%s\n", *userID, *role, ttl)
}
