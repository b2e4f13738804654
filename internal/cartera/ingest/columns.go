package ingest

import (
	c "github.com/alanchaparro/bi-sub000/internal/cartera/converter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

// ColumnContract lists, per logical field, the folded header names accepted for it.
type ColumnContract struct {
	Required map[string][]string
	Optional map[string][]string
}

var columnsForDataset = map[types.DatasetKind]ColumnContract{
	types.Cartera: {
		Required: map[string][]string{
			c.FieldContractID:     {"id_contrato", "contrato", "nro_contrato"},
			c.FieldManagementDate: {"fecha_gestion", "mes_gestion", "gestion", "fecha_cierre_gestion"},
			c.FieldBusinessUnit:   {"un", "unidad_negocio", "unidad_de_negocio"},
			c.FieldTramo:          {"tramo"},
			c.FieldCuota:          {"monto_cuota", "cuota", "valor_cuota"},
			c.FieldOverdue:        {"monto_vencido", "vencido", "deuda_vencida"},
		},
		Optional: map[string][]string{
			c.FieldCollectionVia: {"via_cobro", "via_de_cobro", "canal_cobro"},
			c.FieldSaleDate:      {"fecha_venta", "mes_venta", "fecha_contrato"},
			c.FieldCloseDate:     {"fecha_cierre", "mes_cierre"},
		},
	},
	types.Cobranzas: {
		Required: map[string][]string{
			c.FieldContractID: {"id_contrato", "contrato", "nro_contrato"},
			c.FieldAmount:     {"monto", "importe", "monto_cobrado"},
			c.FieldDate:       {"fecha", "fecha_pago", "fecha_cobro", "mes"},
		},
		Optional: map[string][]string{
			c.FieldPaymentVia: {"via_pago", "via_de_pago", "canal_pago", "medio_pago"},
		},
	},
	types.Contratos: {
		Required: map[string][]string{
			c.FieldContractID: {"id_contrato", "contrato", "nro_contrato"},
			c.FieldSaleDate:   {"fecha_venta", "fecha_contrato", "fecha_alta"},
		},
		Optional: map[string][]string{
			c.FieldBusinessUnit:   {"un", "unidad_negocio", "unidad_de_negocio"},
			c.FieldSupervisor:     {"supervisor", "supervisor_venta"},
			c.FieldCompletionDate: {"fecha_culminacion", "mes_culminacion", "culminacion"},
			c.FieldStatus:         {"estado", "estado_contrato"},
		},
	},
	types.Gestores: {
		Required: map[string][]string{
			c.FieldContractID: {"id_contrato", "contrato", "nro_contrato"},
			c.FieldMonth:      {"mes", "mes_gestion", "fecha_gestion", "fecha"},
			c.FieldAgent:      {"gestor", "nombre_gestor", "agente"},
		},
	},
}

func ContractFor(kind types.DatasetKind) (ColumnContract, bool) {
	cc, ok := columnsForDataset[kind]
	return cc, ok
}
