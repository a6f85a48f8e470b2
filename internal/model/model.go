// Package model содержит доменные сущности сервиса договоров.
package model

import (
	"io"
	"time"
)

// Category описывает тип сделки по договору.
type Category string

const (
	CategorySale    Category = "SALE"
	CategoryDeposit Category = "DEPOSIT"
	CategoryMonthly Category = "MONTHLY"
)

// Valid сообщает, входит ли категория в перечисление.
func (c Category) Valid() bool {
	switch c {
	case CategorySale, CategoryDeposit, CategoryMonthly:
		return true
	}
	return false
}

// Amounts сообщает, какие суммы имеют смысл для категории: залог,
// ежемесячная плата и цена.
func (c Category) Amounts() (deposit, monthlyRent, price bool) {
	switch c {
	case CategorySale:
		return false, false, true
	case CategoryDeposit:
		return true, false, false
	case CategoryMonthly:
		return true, true, false
	}
	return true, true, true
}

// Party описывает одного участника сделки со стороны арендодателя/продавца или арендатора/покупателя.
type Party struct {
	CustomerID int64  `json:"customerId"`
	Name       string `json:"name"`
}

// Document описывает файл, уже сохранённый во внешнем хранилище.
type Document struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// Upload описывает новый файл, ещё не загруженный в хранилище.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// HistoryEntry описывает одну запись журнала смены статусов.
type HistoryEntry struct {
	PrevStatus    Status    `json:"prevStatus"`
	CurrentStatus Status    `json:"currentStatus"`
	ChangedAt     time.Time `json:"changedAt"`
}

// Contract описывает договор и все связанные с ним данные.
type Contract struct {
	ID                      int64
	Category                *Category
	Status                  Status
	ContractDate            *time.Time
	ContractStartDate       *time.Time
	ContractEndDate         *time.Time
	ExpectedContractEndDate *time.Time
	PropertyID              int64
	PropertyAddress         string
	Deposit                 int64
	MonthlyRent             int64
	Price                   int64
	LessorOrSellerParties   []Party
	LesseeOrBuyerParties    []Party
	Documents               []Document
	History                 []HistoryEntry
}

// Clone возвращает копию договора, не разделяющую срезы и указатели с исходным.
func (c Contract) Clone() Contract {
	out := c
	out.Category = cloneCategory(c.Category)
	out.ContractDate = cloneTime(c.ContractDate)
	out.ContractStartDate = cloneTime(c.ContractStartDate)
	out.ContractEndDate = cloneTime(c.ContractEndDate)
	out.ExpectedContractEndDate = cloneTime(c.ExpectedContractEndDate)
	out.LessorOrSellerParties = append([]Party(nil), c.LessorOrSellerParties...)
	out.LesseeOrBuyerParties = append([]Party(nil), c.LesseeOrBuyerParties...)
	out.Documents = append([]Document(nil), c.Documents...)
	out.History = append([]HistoryEntry(nil), c.History...)
	return out
}

// Violation описывает одно нарушение правил заполнения договора.
type Violation struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды нарушений, возвращаемые валидатором.
const (
	ViolationDateOrder        = "date_order"
	ViolationPartyEmpty       = "party_empty"
	ViolationPartyOverlap     = "party_overlap"
	ViolationPartyUnknown     = "party_unknown"
	ViolationPropertyRequired = "property_required"
	ViolationPropertyUnknown  = "property_unknown"
	ViolationStatusRequired   = "status_required"
	ViolationAmountNegative   = "amount_negative"
	ViolationDocumentUnknown  = "document_unknown"
)

// PropertyRef связывает объект недвижимости с сохранённой копией его адреса.
type PropertyRef struct {
	PropertyID int64
	Address    string
}

const dateLayout = "2006-01-02"

// ParseDate разбирает дату в формате YYYY-MM-DD. Пустая строка означает отсутствие даты.
func ParseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatDate форматирует дату в YYYY-MM-DD, для nil возвращает пустую строку.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// DateOf отбрасывает время суток, оставляя календарную дату в UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneCategory(c *Category) *Category {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
