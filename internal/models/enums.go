package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/orcafacil/internal/common"
)

// Status is the lifecycle state of a budget.
type Status string

const (
	StatusInAnalysis Status = "EM_ANALISE"
	StatusSent       Status = "ENVIADO"
	StatusApproved   Status = "APROVADO"
	StatusRejected   Status = "RECUSADO"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusInAnalysis, StatusSent, StatusApproved, StatusRejected}

var (
	ErrUnknownStatus   = fmt.Errorf("%w: unknown budget status", common.ErrValidation)
	ErrUnknownItemType = fmt.Errorf("%w: unknown item type", common.ErrValidation)
)

// ParseStatus decodes a persisted or remote status. An empty value means the
// column default (EM_ANALISE); anything unrecognized is ErrUnknownStatus.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return StatusInAnalysis, nil
	case StatusInAnalysis, StatusSent, StatusApproved, StatusRejected:
		return v, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
	}
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil && s != ""
}

// ItemType classifies a budget line.
type ItemType string

const (
	ItemTypeMaterial ItemType = "MATERIAL"
	ItemTypeLabor    ItemType = "LABOR"
	ItemTypeService  ItemType = "SERVICE"
)

var ItemTypes = []ItemType{ItemTypeMaterial, ItemTypeLabor, ItemTypeService}

// legacy codes written by the first mobile release
var itemTypeAliases = map[string]ItemType{
	"MAO_DE_OBRA": ItemTypeLabor,
	"SERVICO":     ItemTypeService,
}

// ParseItemType decodes a persisted or remote item type, accepting legacy
// codes. Unlike status there is no default: empty is an error.
func ParseItemType(s string) (ItemType, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch t := ItemType(v); t {
	case ItemTypeMaterial, ItemTypeLabor, ItemTypeService:
		return t, nil
	}
	if t, ok := itemTypeAliases[v]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownItemType, s)
}

func (t ItemType) Valid() bool {
	_, err := ParseItemType(string(t))
	return err == nil
}
