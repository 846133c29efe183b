package flow

import (
	"fmt"
	"time"
)

// WriteMode selects the statement generated for a flow
type WriteMode string

const (
	Insert                  WriteMode = "INSERT"
	InsertOnDuplicateUpdate WriteMode = "INSERT_ON_DUPLICATE_UPDATE"
)

// Upsert reports whether rows should replace existing ones on key conflict
func (m WriteMode) Upsert() bool {
	return m == InsertOnDuplicateUpdate
}

func parseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case Insert, "":
		return Insert, nil
	case InsertOnDuplicateUpdate:
		return InsertOnDuplicateUpdate, nil
	default:
		return "", fmt.Errorf("unknown write mode %q", s)
	}
}

// Definition describes one pollable metric stream and where its rows go
type Definition struct {
	Name         string
	Source       string
	Table        string
	Columns      []string
	KeyColumns   []string
	WriteMode    WriteMode
	PollInterval time.Duration
}

// Row is one positional tuple; its order matches Definition.Columns
type Row []any

// Message is a batch of rows produced by one poll of one flow
type Message struct {
	Flow string
	Rows []Row
}
