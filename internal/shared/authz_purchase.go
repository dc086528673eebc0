package shared

// Purchase and cashier permissions.
const (
	PermPurchaseView            = "purchase.view"
	PermPurchaseEdit            = "purchase.edit"
	PermPurchaseEstimateApprove = "purchase.estimate.approve"

	PermDiscountsView   = "discounts.view"
	PermDiscountsManage = "discounts.manage"

	PermIncentivesView = "incentives.view"
	PermIncentivesRun  = "incentives.run"

	PermCashierView    = "cashier.view"
	PermCashierCollect = "cashier.collect"
)

// PurchaseScopes lists all permissions related to purchase customizations.
func PurchaseScopes() []string {
	return []string{
		PermPurchaseView,
		PermPurchaseEdit,
		PermPurchaseEstimateApprove,
		PermDiscountsView,
		PermDiscountsManage,
		PermIncentivesView,
		PermIncentivesRun,
	}
}

// CashierScopes lists all permissions related to cashier collections.
func CashierScopes() []string {
	return []string{
		PermCashierView,
		PermCashierCollect,
	}
}
