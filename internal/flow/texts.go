package flow

// User-facing texts. Format verbs are documented where a text takes arguments.
const (
	msgWelcome       = "Welcome to the VPN bot 👋\nUse the buttons below to get started:"
	msgFallback      = "I did not understand that. Send /start to open the menu."
	msgStaleChoice   = "That button is no longer active. Send /start to open the menu."
	msgAdminOnly     = "⛔ This action is only available to the administrator."
	msgInternalError = "❌ Something went wrong. Please try again with /start."
	msgNotApproved   = "⛔ You have not been approved by the administrator yet. Please wait for approval or send a top-up request."
	msgUnavailable   = "❌ This service is currently unavailable."
	msgNoActiveChat  = "You are not in a chat session."

	// %d credit, %s currency
	msgCredit = "💳 Your credit: %d %s"
	// %s handle, %d id, %d credit, %s currency, %s discount, %s approval
	msgStatus = "👤 %s\n🆔 %d\n💳 Credit: %d %s\n🎁 Discount code: %s\n✅ Approval: %s"

	msgChooseAccount = "Please choose an account type:"
	// %s handle, %d id, %s label
	msgAdminAccountRequest = "🛒 New account request:\nUser: %s (ID: %d)\nRequested type: %s\nPlease send the account:"
	msgAccountRequested    = "✅ Your purchase request was sent to the administrator. Please wait for your account."

	msgChooseDevice     = "Choose your device:"
	msgGuideUnavailable = "No guide images are configured."

	msgChooseService = "Which service do you need?"

	msgEnterCode       = "Please enter your discount code:"
	msgDiscountUsed    = "⛔ You have already used a discount code."
	msgDiscountInvalid = "❌ Invalid discount code."
	// %d value, %s currency
	msgDiscountCredited = "✅ %d %s credit added."

	msgEnterTargetID     = "Please enter the numeric ID of the recipient:"
	msgInvalidTargetID   = "❌ Invalid user ID. Please enter a whole number."
	msgSelfTransfer      = "❌ You cannot transfer credit to yourself."
	msgEnterAmount       = "How much credit should be transferred?"
	msgInvalidAmount     = "❌ Invalid amount. Please enter a positive whole number."
	msgInsufficientFunds = "❌ Your credit is not sufficient."
	msgUnknownRecipient  = "❌ No user with that ID exists."
	msgTransferDone      = "✅ Transfer completed."
	// %d amount, %s currency, %d sender id
	msgTransferReceived = "💳 You received %d %s credit from user %d."

	msgEnterPayment = "Enter the amount and a description of your payment:\nExample: 100000 - card transfer to 6274xxxxxxxxxxxx"
	// %s handle, %d id, %s description
	msgAdminTopUp    = "💳 Top-up request from:\n%s\n🆔 %d\n💬 Description: %s"
	msgTopUpReceived = "✅ Your request was sent to the administrator. Please wait for approval."

	msgEnterSupport = "Please send your message for support:"
	// %s handle, %d id, %s message
	msgAdminSupport = "✉️ New support message:\nUser: %s (ID: %d)\nMessage: %s"
	msgSupportSent  = "✅ Your message was sent to support. Please wait for a reply."

	msgAdminPanel = "🎛 Admin panel:"
	msgNoPending  = "✅ No users are waiting for approval."
	// %d pending count
	msgPendingDigest = "⏳ %d user(s) are waiting for approval."
	// %s handle, %d id, %d credit, %s currency, %s discount, %s approval
	msgPendingUser = "Request from: %s\nID: %d\nCredit: %d %s\nDiscount: %s\nStatus: %s"
	msgApproved    = "✅ User %d approved."
	msgYouApproved = "Your account was approved by the administrator. You can now use every service."

	// %s service label
	msgEnterServiceContent = "Send the link or text for %s, or upload the file:"
	msgServiceSavedText    = "✅ Text/link service saved."
	// %s file reference
	msgServiceSavedFile    = "✅ File saved with file ID: %s"
	msgServiceInvalidInput = "❌ Invalid input. Please send a file or a text/link."

	msgEnterDiscount   = "Enter the code and value (example: vip50 5000):"
	msgDiscountFormat  = "❌ Wrong format."
	msgDiscountExists  = "❌ That code already exists."
	msgDiscountCreated = "✅ Code added."

	msgEnterCharge  = "User ID and amount (example: 123456789 10000):"
	msgChargeFormat = "❌ Invalid input."
	msgChargeNoUser = "❌ No user with ID %d exists; nothing was charged."
	msgCharged      = "✅ Charged."
	// %d amount, %s currency
	msgChargedUser = "💳 The administrator added %d %s to your credit."

	msgEnterBroadcast = "Send the broadcast message:"
	// %d sent, %d failed
	msgBroadcastSummary = "📢 Broadcast finished: %d sent, %d failed."

	msgUnknownItemToken = "❌ This request is no longer available."
	// %s kind, %s label, %d target
	msgEnterItemDetails = "Please send the %s details (type: %s) for user ID %d:"
	// %s label, %s kind, %s details
	msgItemReady = "✨ Your %s %s is ready:\n\n%s\n\nEnjoy the service!"
	// %s kind, %d target
	msgItemDelivered = "✅ The %s details were sent to user ID %d."
	// %s kind, %d target
	msgItemFailed = "❌ Could not deliver the %s to user ID %d."

	msgEnterChatTarget = "Please enter the numeric ID of the user you want to chat with:"
	// %d target
	msgChatStarted = "You are now chatting with user ID %d.\nEvery message you send here is forwarded to them.\nSend /exit_chat to leave."
	// %s message
	msgFromAdmin   = "Message from admin: %s"
	msgChatSent    = "✅ Your message was sent."
	msgChatFailed  = "❌ Could not deliver the message to the user."
	msgChatExited  = "You left the chat."
)

const (
	labelBuyAccount = "📥 Buy account"
	labelGetApp     = "📃 Get app"
	labelDiscount   = "🎁 Activate discount code"
	labelMyCredit   = "🏦 My credit"
	labelTransfer   = "🔁 Transfer credit"
	labelMyStatus   = "ℹ️ My status"
	labelServices   = "🌐 Get services"
	labelTopUp      = "💳 Top up credit"
	labelSupport    = "✉️ Message support"
	labelAbout      = "About us"
	labelAdminPanel = "🎛 Admin panel"

	labelListPending = "🧾 Approve users"
	labelAddDiscount = "➕ Add discount code"
	labelChargeUser  = "💰 Charge user"
	labelBroadcast   = "📢 Broadcast"
	labelChatUser    = "✉️ Chat with user"
	labelApprove     = "✅ Approve"
	labelSendAccount = "✅ Send account"
	labelReply       = "💬 Reply"

	labelDiscountUsed   = "used"
	labelDiscountUnused = "not used"
	labelApprovedStatus = "approved"
	labelPendingStatus  = "waiting for approval"
)
