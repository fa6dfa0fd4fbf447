// Package models defines the response envelope and catalog shapes shared by
// every layer. Both providers answer with the same wrapper, so the whole
// pipeline speaks one format regardless of which source produced the data.
package models

// Envelope is the uniform wrapper every repository operation returns.
// A value is never mutated after construction; rewrapping builds a new one.
type Envelope[T any] struct {
	StatusCode    int         `json:"statusCode"`
	StatusMessage string      `json:"statusMessage"`
	Message       string      `json:"message"`
	OK            bool        `json:"ok"`
	Data          T           `json:"data"`
	Pagination    *Pagination `json:"pagination,omitempty"`
}

// Pagination carries page cursors. The Has* flags must agree with the
// pointer fields; Normalize enforces that after decoding.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	PrevPage    *int `json:"prevPage"`
	HasNextPage bool `json:"hasNextPage"`
	NextPage    *int `json:"nextPage"`
	TotalPages  int  `json:"totalPages"`
}

// Normalize derives the Has* flags from the pointer fields. Providers have
// been seen sending hasNextPage=true with nextPage=null on their last page.
func (p *Pagination) Normalize() {
	if p == nil {
		return
	}
	p.HasPrevPage = p.PrevPage != nil
	p.HasNextPage = p.NextPage != nil
}

// Success builds a plain 200 envelope around data.
func Success[T any](data T, pagination *Pagination) Envelope[T] {
	return Envelope[T]{
		StatusCode:    200,
		StatusMessage: "OK",
		Message:       "",
		OK:            true,
		Data:          data,
		Pagination:    pagination,
	}
}

// Failure builds an error envelope with a zero data field.
func Failure[T any](statusCode int, statusMessage, message string) Envelope[T] {
	var zero T
	return Envelope[T]{
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Message:       message,
		OK:            false,
		Data:          zero,
	}
}
