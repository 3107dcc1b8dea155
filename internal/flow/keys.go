package flow

// Choice keys. Keys and payloads travel in callback data, so both stay short.
const (
	keyBuyAccount   = "buy_account"
	keyGetApp       = "get_app"
	keyDiscount     = "activate_discount"
	keyMyCredit     = "my_credit_inline"
	keyTransfer     = "transfer_credit"
	keyMyStatus     = "my_status_inline"
	keyServices     = "get_services"
	keyTopUp        = "top_up_credit"
	keySupport      = "message_support"
	keyAbout        = "show_about"
	keyAdminPanel   = "admin_panel"
	keyBuyType      = "buy_type"
	keyAppType      = "app_type"
	keyServiceType  = "service_type"
	keyListPending  = "admin_list_pending"
	keyApprove      = "approve"
	keyAddService   = "admin_add_service"
	keyAddDiscount  = "admin_add_discount"
	keyCharge       = "admin_charge_user"
	keyBroadcast    = "admin_broadcast"
	keyChatWithUser = "admin_chat_with_user"
	keySendItem     = "send_item"
)

// Session variable names.
const (
	varTargetID = "target_id"
	varKind     = "kind"
	varLabel    = "label"
	varToken    = "token"
)
