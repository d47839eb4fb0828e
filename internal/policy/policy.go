// Package policy 决定某个资源上的动作在给定认证状态下是否放行。
//
// 每个资源在启动时显式声明自己使用的 Variant，不从路由或方法推断。
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Action 是资源处理器暴露的五种动作之一。
type Action int

const (
	List Action = iota + 1
	Retrieve
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case List:
		return "list"
	case Retrieve:
		return "retrieve"
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ReadOnly 报告动作是否只读。
func (a Action) ReadOnly() bool { return a == List || a == Retrieve }

// Variant 是一组 (动作, 认证状态) -> 放行/拒绝 的规则。零值无效，一律拒绝。
type Variant int

const (
	// PublicRead: list/retrieve 无条件放行，写操作需要认证。
	PublicRead Variant = iota + 1
	// AuthenticatedOnly: 所有动作都需要认证。
	AuthenticatedOnly
)

func (v Variant) String() string {
	switch v {
	case PublicRead:
		return "public-read"
	case AuthenticatedOnly:
		return "authenticated-only"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

var (
	// ErrNotAuthenticated 表示请求需要认证但没有有效凭证（401）。
	ErrNotAuthenticated = errors.New("authentication credentials were not provided")
	// ErrForbidden 表示已认证但策略不允许该动作（403）。
	ErrForbidden = errors.New("permission denied")
)

// ParseVariant 解析配置中的策略名，大小写与下划线不敏感。
func ParseVariant(s string) (Variant, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "public-read":
		return PublicRead, nil
	case "authenticated-only":
		return AuthenticatedOnly, nil
	}
	return 0, fmt.Errorf("unknown access policy %q", s)
}

// Authorize 返回 nil 表示放行；拒绝时返回 ErrNotAuthenticated 或 ErrForbidden。
func Authorize(v Variant, a Action, authenticated bool) error {
	switch v {
	case PublicRead:
		if a.ReadOnly() {
			return nil
		}
	case AuthenticatedOnly:
	default:
		return ErrForbidden
	}
	if !validAction(a) {
		return ErrForbidden
	}
	if !authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

func validAction(a Action) bool { return a >= List && a <= Delete }
