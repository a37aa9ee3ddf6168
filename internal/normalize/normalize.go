// Package normalize 修复后端返回的伪 JSON 子文档
//
// 后端偶尔把 car/admin/user 子文档序列化成对象字面量字符串，例如
//
//	{_id: ObjectId('64f1'), name: 'Ana'}
//
// Normalize 把这类字符串还原成结构化的值，失败时原样返回。
package normalize

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrUnrepairable 字符串无法修复为 JSON
var ErrUnrepairable = errors.New("normalize: payload cannot be repaired")

// ObjectId('..') / ISODate("..") / new Date('..') 等构造器包装，只匹配当前位置
var constructorRe = regexp.MustCompile(`^(?:new\s+)?(?:ObjectId|ISODate|Date|NumberLong|NumberInt|NumberDecimal)\(\s*['"]([^'"]*)['"]\s*\)`)

// 单独出现的构造器，例如 "ObjectId('64f1')"
var bareConstructorRe = regexp.MustCompile(`^\s*(?:new\s+)?(?:ObjectId|ISODate|Date)\(\s*['"]([^'"]*)['"]\s*\)\s*$`)

// Normalizer 子文档修复器
type Normalizer struct {
	logger *zap.Logger
}

// New 创建修复器
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize 修复任意字段值，永不失败
// 非字符串原样返回；对象字面量字符串解析为 map/slice；无法修复时返回原字符串并记录警告
func (n *Normalizer) Normalize(raw any) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}

	if m := bareConstructorRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	if !looksStructured(s) {
		return s
	}

	v, err := Repair(s)
	if err != nil {
		n.logger.Warn("Failed to normalize payload, keeping raw value",
			zap.String("raw", truncate(s, 200)),
			zap.Error(err))
		return s
	}
	return v
}

// Repair 执行修复流程：去除构造器包装、给键加引号、单引号转双引号，然后按 JSON 解析
func Repair(s string) (any, error) {
	repaired, err := rewriteLiteral(s)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, errors.Join(ErrUnrepairable, err)
	}
	return v, nil
}

func looksStructured(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}

// rewriteLiteral 单趟扫描对象字面量：
// 未加引号的键加上双引号，单引号字符串转为双引号，构造器包装替换为字符串，
// undefined 转 null，去掉尾随逗号。字符串内容原样保留
func rewriteLiteral(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) + 16)

	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '"':
			end, err := scanDoubleQuoted(rs, i)
			if err != nil {
				return "", err
			}
			b.WriteString(string(rs[i : end+1]))
			i = end

		case r == '\'':
			content, end, err := scanSingleQuoted(rs, i)
			if err != nil {
				return "", err
			}
			b.WriteByte('"')
			b.WriteString(content)
			b.WriteByte('"')
			i = end

		case r == ',':
			if next := skipSpace(rs, i+1); next < len(rs) && (rs[next] == '}' || rs[next] == ']') {
				continue
			}
			b.WriteRune(r)

		case isIdentStart(r):
			if value, end, ok := matchConstructor(rs, i); ok {
				b.WriteByte('"')
				b.WriteString(value)
				b.WriteByte('"')
				i = end - 1
				continue
			}
			end := i
			for end < len(rs) && isIdentPart(rs[end]) {
				end++
			}
			ident := string(rs[i:end])
			next := skipSpace(rs, end)
			switch {
			case next < len(rs) && rs[next] == ':':
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
			case ident == "undefined":
				b.WriteString("null")
			default:
				b.WriteString(ident)
			}
			i = end - 1

		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// matchConstructor 匹配 start 处的构造器，返回参数和结束位置（不含）
func matchConstructor(rs []rune, start int) (string, int, bool) {
	rest := string(rs[start:])
	loc := constructorRe.FindStringSubmatchIndex(rest)
	if loc == nil {
		return "", 0, false
	}
	return rest[loc[2]:loc[3]], start + utf8.RuneCountInString(rest[:loc[1]]), true
}

func scanDoubleQuoted(rs []rune, start int) (int, error) {
	for i := start + 1; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	return 0, ErrUnrepairable
}

// scanSingleQuoted 返回 JSON 双引号字符串内容（不含引号）和结束位置
func scanSingleQuoted(rs []rune, start int) (string, int, error) {
	var b strings.Builder
	for i := start + 1; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			if i+1 >= len(rs) {
				return "", 0, ErrUnrepairable
			}
			i++
			if rs[i] == '\'' {
				b.WriteRune('\'')
			} else {
				b.WriteRune('\\')
				b.WriteRune(rs[i])
			}
		case '"':
			b.WriteString(`\"`)
		case '\'':
			return b.String(), i, nil
		default:
			b.WriteRune(rs[i])
		}
	}
	return "", 0, ErrUnrepairable
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && (rs[i] == ' ' || rs[i] == '\t' || rs[i] == '\n' || rs[i] == '\r') {
		i++
	}
	return i
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// truncate 按字符截断，n 为最多保留的字符数
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
