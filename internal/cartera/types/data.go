package types

import (
	"time"

	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
)

type DatasetKind int

const (
	Cartera DatasetKind = iota
	Cobranzas
	Contratos
	Gestores
)

var AllKinds = []DatasetKind{Cartera, Cobranzas, Contratos, Gestores}

var DatasetKindNames = map[DatasetKind]string{
	Cartera:   "cartera",
	Cobranzas: "cobranzas",
	Contratos: "contratos",
	Gestores:  "gestores",
}

func (k DatasetKind) String() string {
	if n, ok := DatasetKindNames[k]; ok {
		return n
	}
	return "desconocido"
}

func ParseDatasetKind(s string) (DatasetKind, bool) {
	for k, n := range DatasetKindNames {
		if n == s {
			return k, true
		}
	}
	return 0, false
}

// DelinquentTramo is the first delinquency bucket considered "moroso".
// Buckets below it are current ("vigente").
const DelinquentTramo = 4

func IsDelinquent(tramo int) bool { return tramo >= DelinquentTramo }

type StatusCategory string

const (
	StatusCurrent    StatusCategory = "vigente"
	StatusDelinquent StatusCategory = "moroso"
	StatusCompleted  StatusCategory = "culminado"
	StatusUnknown    StatusCategory = "desconocido"
)

func CategoryForTramo(tramo int) StatusCategory {
	if IsDelinquent(tramo) {
		return StatusDelinquent
	}
	return StatusCurrent
}

// PortfolioRow is one Cartera snapshot: a contract as seen in one management month.
// Raw fields hold the feed values; the canonical fields below them are filled by the normalizer.
type PortfolioRow struct {
	RawContractID     string  `json:"id_contrato"`
	BusinessUnit      string  `json:"un"`
	Tramo             int     `json:"tramo"`
	RawManagementDate string  `json:"fecha_gestion"`
	CuotaAmount       float64 `json:"monto_cuota"`
	OverdueAmount     float64 `json:"monto_vencido"`
	CollectionChannel string  `json:"via_cobro"`
	RawSaleDate       string  `json:"fecha_venta"`
	RawCloseDate      string  `json:"fecha_cierre"`

	Normalized      bool           `json:"-"`
	ContractID      string         `json:"-"`
	ManagementMonth period.Month   `json:"-"`
	SaleMonth       period.Month   `json:"-"`
	CloseMonth      period.Month   `json:"-"`
	StatusCategory  StatusCategory `json:"-"`
}

// CollectionTransaction is one Cobranzas payment.
type CollectionTransaction struct {
	RawContractID      string  `json:"id_contrato"`
	Amount             float64 `json:"monto"`
	PaymentChannel     string  `json:"via_pago"`
	RawTransactionDate string  `json:"fecha"`

	Normalized       bool         `json:"-"`
	ContractID       string       `json:"-"`
	TransactionMonth period.Month `json:"-"`
}

// ContractMaster is one Contratos record.
type ContractMaster struct {
	RawContractID     string `json:"id_contrato"`
	BusinessUnit      string `json:"un"`
	Supervisor        string `json:"supervisor"`
	RawSaleDate       string `json:"fecha_venta"`
	RawCompletionDate string `json:"fecha_culminacion"`
	Status            string `json:"estado"`

	Normalized      bool           `json:"-"`
	ContractID      string         `json:"-"`
	SaleDate        time.Time      `json:"-"`
	SaleMonth       period.Month   `json:"-"`
	CompletionMonth period.Month   `json:"-"`
	StatusCategory  StatusCategory `json:"-"`
}

// AssignmentRecord is one Gestores row: the agent working a contract in a month.
type AssignmentRecord struct {
	RawContractID      string `json:"id_contrato"`
	RawAssignmentMonth string `json:"mes"`
	AgentName          string `json:"gestor"`

	Normalized      bool         `json:"-"`
	ContractID      string       `json:"-"`
	AssignmentMonth period.Month `json:"-"`
}
