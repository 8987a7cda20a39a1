package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	DisasterHandler     *DisasterHandler
	ResponderHandler    *ResponderHandler
	NotificationHandler *NotificationHandler
	HealthHandler       *HealthHandler
}
