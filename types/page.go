/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

// Default pagination values used when neither the caller nor the request supplies one.
const (
	DefaultPerPage = 20
	DefaultPage    = 1
)

// PageRequest describes the page to fetch. Values below 1 fall back to the defaults.
type PageRequest struct {
	page     int
	pageSize int
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPerPage
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = DefaultPage
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// NewPageRequest constructs a PageRequest.
func NewPageRequest(page int, pageSize int) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize}
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int  `json:"page"`
	PageSize int  `json:"per_page"`
	Total    int  `json:"total"`
	Items    []*T `json:"items"`
}

// NewPagination wraps rows and the total row count of the filtered query.
func NewPagination[T any](items []*T, total int, pageSize int, page int) *Pagination[T] {
	if items == nil {
		items = make([]*T, 0)
	}
	return &Pagination[T]{Page: page, PageSize: pageSize, Total: total, Items: items}
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return NewPagination[T](nil, 0, pageSize, page)
}

// LastPage returns the number of the last page, which is at least 1.
func (p *Pagination[T]) LastPage() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasMore reports whether pages follow the current one.
func (p *Pagination[T]) HasMore() bool {
	return p.Page < p.LastPage()
}

// From returns the 1-based position of the first item on the page, 0 when empty.
func (p *Pagination[T]) From() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + 1
}

// To returns the 1-based position of the last item on the page, 0 when empty.
func (p *Pagination[T]) To() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.From() + len(p.Items) - 1
}
