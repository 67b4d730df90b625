package enums

// NotificationType labels dashboard notification rows.
type NotificationType string

const (
	NotificationTypeOrderConfirmed  NotificationType = "order_confirmed"
	NotificationTypeOrderCancelled  NotificationType = "order_cancelled"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeShipmentBooked  NotificationType = "shipment_booked"
	NotificationTypeShipmentFailed  NotificationType = "shipment_failed"
)

// NotificationPriority separates routine updates from operator escalations.
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)
