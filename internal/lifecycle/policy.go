// Package lifecycle реализует переходы договора между статусами.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// Policy задаёт, из каких статусов разрешены отмена и расторжение договора.
// Продвижение по основному пути на один шаг разрешено всегда.
type Policy struct {
	CancelFrom    []model.Status
	TerminateFrom []model.Status
}

// DefaultPolicy разрешает отмену только для договора в процессе исполнения,
// а расторжение из любого неконечного статуса.
func DefaultPolicy() Policy {
	var terminate []model.Status
	for _, s := range model.Statuses {
		if !s.Terminal() {
			terminate = append(terminate, s)
		}
	}
	return Policy{
		CancelFrom:    []model.Status{model.StatusInProgress},
		TerminateFrom: terminate,
	}
}

// CanAdvance сообщает, является ли next непосредственным преемником from.
func (p Policy) CanAdvance(from, next model.Status) bool {
	succ, ok := from.Successor()
	return ok && succ == next
}

// CanBranch сообщает, разрешён ли переход из from в CANCELLED или TERMINATED.
func (p Policy) CanBranch(from, to model.Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case model.StatusCancelled:
		return containsStatus(p.CancelFrom, from)
	case model.StatusTerminated:
		return containsStatus(p.TerminateFrom, from)
	}
	return false
}

// AllowedNext возвращает все статусы, в которые можно перейти из from.
func (p Policy) AllowedNext(from model.Status) []model.Status {
	var out []model.Status
	if succ, ok := from.Successor(); ok {
		out = append(out, succ)
	}
	for _, branch := range []model.Status{model.StatusCancelled, model.StatusTerminated} {
		if p.CanBranch(from, branch) {
			out = append(out, branch)
		}
	}
	return out
}

// ParseStatusList разбирает список статусов через запятую. Значение "*"
// означает все неконечные статусы.
func ParseStatusList(raw string) ([]model.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if raw == "*" {
		return DefaultPolicy().TerminateFrom, nil
	}

	var out []model.Status
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		s := model.Status(item)
		if !s.Valid() {
			return nil, fmt.Errorf("unknown status %q", item)
		}
		if s.Terminal() {
			return nil, fmt.Errorf("status %q is terminal", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
