package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/realty-contracts/internal/attachment"
	"github.com/mmeshcher/realty-contracts/internal/lifecycle"
	"github.com/mmeshcher/realty-contracts/internal/model"
	"github.com/mmeshcher/realty-contracts/internal/party"
	"github.com/mmeshcher/realty-contracts/internal/repository"
)

var (
	// ErrValidation возвращается при локальной ошибке проверки. Запрос в хранилище не выполнялся.
	ErrValidation = errors.New("validation failed")
	// ErrPartyOverlap возвращается, если клиент указан на обеих сторонах сделки.
	ErrPartyOverlap = errors.New("party overlap")
	// ErrFileTooLarge возвращается, если файл превышает допустимый размер.
	ErrFileTooLarge = attachment.ErrFileTooLarge
	// ErrConflict возвращается, если хранилище отклонило запись из-за конфликта с существующими данными.
	ErrConflict = errors.New("conflict")
	// ErrDuplicateContract возвращается, если такой договор уже существует.
	ErrDuplicateContract = fmt.Errorf("%w: duplicate contract", ErrConflict)
	// ErrPropertyUnderContract возвращается, если по объекту уже есть действующий договор.
	ErrPropertyUnderContract = fmt.Errorf("%w: property under active contract", ErrConflict)
	// ErrNotFound возвращается, если договор не найден, обычно после удаления в другом месте.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition возвращается, если переход между статусами не разрешён.
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	// ErrConfirmationRequired возвращается, если операция требует явного подтверждения.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrServer объединяет прочие ошибки хранилища и внешних сервисов.
	ErrServer = errors.New("server error")
)

// ValidationError содержит все нарушения, найденные до обращения к хранилищу.
type ValidationError struct {
	Violations []model.Violation
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(codes, ", "))
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation) и,
// при пересечении сторон, через errors.Is(err, ErrPartyOverlap).
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrPartyOverlap, party.ErrPartyOverlap:
		for _, v := range e.Violations {
			if v.Code == model.ViolationPartyOverlap {
				return true
			}
		}
	}
	return false
}

// mapError переводит ошибки нижних слоёв в категории, которые видит пользователь.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrServer),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, attachment.ErrFileTooLarge),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		return err
	case errors.Is(err, repository.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	case errors.Is(err, repository.ErrContractNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicateContract):
		return fmt.Errorf("%w: %w", ErrDuplicateContract, err)
	case errors.Is(err, repository.ErrPropertyUnderContract):
		return fmt.Errorf("%w: %w", ErrPropertyUnderContract, err)
	case errors.Is(err, repository.ErrPartyOverlap), errors.Is(err, party.ErrPartyOverlap):
		return &ValidationError{Violations: []model.Violation{overlapViolation()}}
	case errors.Is(err, repository.ErrInvalidContract):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrServer, err)
	}
	return fmt.Errorf("%w: %w", ErrServer, err)
}

func overlapViolation() model.Violation {
	return model.Violation{
		Code:    model.ViolationPartyOverlap,
		Field:   "lesseeOrBuyerUids",
		Message: "같은 고객이 양쪽 당사자로 지정되었습니다.",
	}
}

// UserMessage возвращает сообщение для пользователя по категории ошибки.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr) && len(verr.Violations) > 0:
		return verr.Violations[0].Message
	case errors.Is(err, ErrValidation):
		return "입력값을 확인해 주세요."
	case errors.Is(err, ErrFileTooLarge):
		return "파일 크기는 10MB를 초과할 수 없습니다."
	case errors.Is(err, ErrDuplicateContract):
		return "이미 등록된 계약입니다."
	case errors.Is(err, ErrPropertyUnderContract):
		return "해당 매물은 이미 진행 중인 계약이 있습니다."
	case errors.Is(err, ErrConflict):
		return "다른 데이터와 충돌하여 저장하지 못했습니다."
	case errors.Is(err, ErrNotFound):
		return "계약을 찾을 수 없습니다. 이미 삭제되었을 수 있습니다."
	case errors.Is(err, ErrInvalidTransition):
		return "허용되지 않는 상태 변경입니다."
	case errors.Is(err, ErrConfirmationRequired):
		return "계속하려면 확인이 필요합니다."
	}
	return "요청을 처리하지 못했습니다. 잠시 후 다시 시도해 주세요."
}
