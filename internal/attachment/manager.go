// Package attachment сверяет уже сохранённые документы договора с новыми файлами.
package attachment

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// MaxFileSize ограничивает размер одного загружаемого файла.
const MaxFileSize int64 = 10 << 20

// ErrFileTooLarge возвращается, если файл превышает MaxFileSize.
var ErrFileTooLarge = errors.New("file is too large")

// Manager хранит сохранённые документы и файлы, подготовленные к загрузке.
type Manager struct {
	existing []model.Document
	staged   []model.Upload
}

// NewManager создаёт менеджер для текущего списка документов договора.
func NewManager(existing []model.Document) *Manager {
	return &Manager{existing: append([]model.Document(nil), existing...)}
}

// StageFile добавляет файл в очередь загрузки.
func (m *Manager) StageFile(u model.Upload) error {
	if err := CheckSize(u); err != nil {
		return err
	}
	m.staged = append(m.staged, u)
	return nil
}

// RemoveExisting убирает сохранённый документ по позиции. Неверный индекс игнорируется.
func (m *Manager) RemoveExisting(index int) {
	if index < 0 || index >= len(m.existing) {
		return
	}
	m.existing = append(m.existing[:index:index], m.existing[index+1:]...)
}

// RemoveStaged убирает подготовленный файл по позиции. Неверный индекс игнорируется.
func (m *Manager) RemoveStaged(index int) {
	if index < 0 || index >= len(m.staged) {
		return
	}
	m.staged = append(m.staged[:index:index], m.staged[index+1:]...)
}

// Existing возвращает копию списка сохранённых документов.
func (m *Manager) Existing() []model.Document {
	return append([]model.Document(nil), m.existing...)
}

// Staged возвращает копию списка подготовленных файлов.
func (m *Manager) Staged() []model.Upload {
	return append([]model.Upload(nil), m.staged...)
}

// ToSubmission возвращает оставляемые документы и новые файлы в том виде,
// в каком их принимает хранилище договоров.
func (m *Manager) ToSubmission() ([]model.Document, []model.Upload) {
	return m.Existing(), m.Staged()
}

// CheckSize проверяет ограничение размера файла.
func CheckSize(u model.Upload) error {
	if u.Size > MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, u.FileName, u.Size, MaxFileSize)
	}
	return nil
}
