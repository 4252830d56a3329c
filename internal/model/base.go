package model

import (
	"time"
)

// RecordMeta carries the audit identity for a single write. The engine
// never invents actors itself; every caller attaches the metadata for
// the write it requests.
type RecordMeta struct {
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

func NewRecordMeta(actor string, at time.Time) RecordMeta {
	return RecordMeta{Actor: actor, At: at}
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
