// Package query 解析请求查询参数为统一的查询计划
//
// 一个计划由四部分组成：过滤（等值与范围比较）、排序、字段投影、分页。
// 解析是纯函数，不做任何 I/O；计划由存储层翻译执行。
package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
)

// Op 过滤谓词操作符
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Predicate 单个过滤条件
//
// 范围操作符的 Value 为 float64，等值操作符的 Value 为 string。
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter 过滤条件集合，各条件按 AND 组合
type Filter []Predicate

// Eq 构造等值过滤条件
func Eq(field, value string) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// SortField 排序字段，Desc 为 true 表示降序
type SortField struct {
	Field string
	Desc  bool
}

// Spec 查询计划
type Spec struct {
	Filter Filter
	Sort   []SortField
	Fields []string // 投影字段，空表示全部

	Page     int // 1 起始
	Limit    int
	Skip     int
	Paginate bool // 为 false 时不应用 Skip/Limit
}

// Options 各端点的解析策略
type Options struct {
	// DefaultLimit 未显式给出 limit 时的每页条数
	DefaultLimit int
	// AlwaysPaginate 为 true 时即使请求未带 page/limit 也分页（tour 列表策略）
	AlwaysPaginate bool
}

// DefaultLimit 通用端点默认每页条数
const DefaultLimit = 10

// 保留参数，不进入过滤条件
var reservedParams = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

// 形如 price[gte] 的范围参数
var rangeKeyRegex = regexp.MustCompile(`^([A-Za-z0-9_.]+)\[(gte|gt|lte|lt)\]$`)

// Parse 将原始查询参数解析为查询计划
//
// 过滤：除保留参数外的每个键都成为一个谓词；key[op] 形式（op 为
// gte/gt/lte/lt）为数值范围比较，值必须可解析为数字；其余键为字符串等值。
// 排序：逗号分隔字段，前缀 - 表示降序，缺省按 created_at 降序。
// 投影：逗号分隔字段白名单。
// 分页：page 1 起始，skip = (page-1)*limit。
func Parse(values url.Values, opts Options) (*Spec, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}

	spec := &Spec{Page: 1, Limit: opts.DefaultLimit}

	// 过滤
	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		// 仅取首个值，防参数污染
		raw := vals[0]

		if m := rangeKeyRegex.FindStringSubmatch(key); m != nil {
			num, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %s expects a numeric value, got %q",
					errdefs.ErrInvalidArgument, key, raw)
			}
			spec.Filter = append(spec.Filter, Predicate{Field: m[1], Op: Op(m[2]), Value: num})
			continue
		}
		spec.Filter = append(spec.Filter, Eq(key, raw))
	}

	// 排序
	if s := values.Get("sort"); s != "" {
		for _, field := range strings.Split(s, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if strings.HasPrefix(field, "-") {
				spec.Sort = append(spec.Sort, SortField{Field: field[1:], Desc: true})
			} else {
				spec.Sort = append(spec.Sort, SortField{Field: field})
			}
		}
	}
	if len(spec.Sort) == 0 {
		spec.Sort = []SortField{{Field: "created_at", Desc: true}}
	}

	// 投影
	if f := values.Get("fields"); f != "" {
		for _, field := range strings.Split(f, ",") {
			if field = strings.TrimSpace(field); field != "" {
				spec.Fields = append(spec.Fields, field)
			}
		}
	}

	// 分页
	explicit := false
	if p := values.Get("page"); p != "" {
		explicit = true
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: page must be a positive integer, got %q",
				errdefs.ErrInvalidArgument, p)
		}
		spec.Page = n
	}
	if l := values.Get("limit"); l != "" {
		explicit = true
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: limit must be a positive integer, got %q",
				errdefs.ErrInvalidArgument, l)
		}
		spec.Limit = n
	}

	spec.Skip = (spec.Page - 1) * spec.Limit
	spec.Paginate = explicit || opts.AlwaysPaginate

	return spec, nil
}
