package dto

// 列表接口的默认与最大每页数量
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationRequest 列表查询的分页参数（query string）
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 页码，从 1 开始
func (p *PaginationRequest) GetPage() int {
	return max(p.Page, 1)
}

// GetPageSize 每页数量，未传时取 DefaultPageSize
func (p *PaginationRequest) GetPageSize() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// GetOffset 对应 SQL OFFSET
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
