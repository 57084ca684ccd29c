package enums

// AuditAction labels mutating operations recorded in the audit trail.
type AuditAction string

const (
	AuditActionLogin        AuditAction = "LOGIN"
	AuditActionLoginFailed  AuditAction = "LOGIN_FAILED"
	AuditActionLogout       AuditAction = "LOGOUT"
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionUpdate       AuditAction = "UPDATE"
	AuditActionDelete       AuditAction = "DELETE"
	AuditActionSale         AuditAction = "SALE"
	AuditActionVoid         AuditAction = "VOID"
	AuditActionReturn       AuditAction = "RETURN"
	AuditActionStockEntry   AuditAction = "STOCK_ENTRY"
	AuditActionStockAdjust  AuditAction = "STOCK_ADJUST"
	AuditActionConfigUpdate AuditAction = "CONFIG_UPDATE"
)

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}
