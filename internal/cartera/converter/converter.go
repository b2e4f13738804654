package converter

import (
	"github.com/go-gota/gota/dataframe"

	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/utils"
)

// Logical field names. Columns maps each of them to the actual (folded) column
// name found in the feed; a missing optional field maps to "".
const (
	FieldContractID     = "id_contrato"
	FieldBusinessUnit   = "un"
	FieldTramo          = "tramo"
	FieldManagementDate = "fecha_gestion"
	FieldCuota          = "monto_cuota"
	FieldOverdue        = "monto_vencido"
	FieldCollectionVia  = "via_cobro"
	FieldSaleDate       = "fecha_venta"
	FieldCloseDate      = "fecha_cierre"
	FieldAmount         = "monto"
	FieldPaymentVia     = "via_pago"
	FieldDate           = "fecha"
	FieldSupervisor     = "supervisor"
	FieldCompletionDate = "fecha_culminacion"
	FieldStatus         = "estado"
	FieldMonth          = "mes"
	FieldAgent          = "gestor"
)

type Columns map[string]string

// Table holds the feed columns already materialised as strings, keyed by logical field.
type Table struct {
	rows   int
	fields map[string][]string
}

func NewTable(df dataframe.DataFrame, cols Columns) *Table {
	t := &Table{rows: df.Nrow(), fields: make(map[string][]string, len(cols))}
	for field, col := range cols {
		if values := utils.ColumnValues(&df, col); values != nil {
			t.fields[field] = values
		}
	}
	return t
}

func (t *Table) Nrow() int { return t.rows }

func (t *Table) str(field string, rowIdx int) string {
	if values, ok := t.fields[field]; ok {
		return values[rowIdx]
	}
	return ""
}

func (t *Table) amount(field string, rowIdx int, issues *normalize.Issue) float64 {
	v, ok := utils.ParseAmount(t.str(field, rowIdx))
	if !ok {
		*issues |= normalize.IssueBadNumber
	}
	return v
}

func (t *Table) integer(field string, rowIdx int, issues *normalize.Issue) int {
	v, ok := utils.ParseInt(t.str(field, rowIdx))
	if !ok {
		*issues |= normalize.IssueBadNumber
	}
	return v
}

func (t *Table) RowToPortfolio(rowIdx int) (types.PortfolioRow, normalize.Issue) {
	var issues normalize.Issue
	row := types.PortfolioRow{
		RawContractID:     t.str(FieldContractID, rowIdx),
		BusinessUnit:      t.str(FieldBusinessUnit, rowIdx),
		Tramo:             t.integer(FieldTramo, rowIdx, &issues),
		RawManagementDate: t.str(FieldManagementDate, rowIdx),
		CuotaAmount:       t.amount(FieldCuota, rowIdx, &issues),
		OverdueAmount:     t.amount(FieldOverdue, rowIdx, &issues),
		CollectionChannel: t.str(FieldCollectionVia, rowIdx),
		RawSaleDate:       t.str(FieldSaleDate, rowIdx),
		RawCloseDate:      t.str(FieldCloseDate, rowIdx),
	}
	return row, issues | normalize.Portfolio(&row)
}

func (t *Table) RowToCollection(rowIdx int) (types.CollectionTransaction, normalize.Issue) {
	var issues normalize.Issue
	row := types.CollectionTransaction{
		RawContractID:      t.str(FieldContractID, rowIdx),
		Amount:             t.amount(FieldAmount, rowIdx, &issues),
		PaymentChannel:     t.str(FieldPaymentVia, rowIdx),
		RawTransactionDate: t.str(FieldDate, rowIdx),
	}
	return row, issues | normalize.Collection(&row)
}

func (t *Table) RowToContract(rowIdx int) (types.ContractMaster, normalize.Issue) {
	row := types.ContractMaster{
		RawContractID:     t.str(FieldContractID, rowIdx),
		BusinessUnit:      t.str(FieldBusinessUnit, rowIdx),
		Supervisor:        t.str(FieldSupervisor, rowIdx),
		RawSaleDate:       t.str(FieldSaleDate, rowIdx),
		RawCompletionDate: t.str(FieldCompletionDate, rowIdx),
		Status:            t.str(FieldStatus, rowIdx),
	}
	return row, normalize.Contract(&row)
}

func (t *Table) RowToAssignment(rowIdx int) (types.AssignmentRecord, normalize.Issue) {
	row := types.AssignmentRecord{
		RawContractID:      t.str(FieldContractID, rowIdx),
		RawAssignmentMonth: t.str(FieldMonth, rowIdx),
		AgentName:          t.str(FieldAgent, rowIdx),
	}
	return row, normalize.Assignment(&row)
}
