package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - ключ, по которому хранится *gorm.DB (пул или транзакция)
const DBContextKey = contextKey("db")

// ActorContextKey - ключ для аутентифицированного *auth.Actor
const ActorContextKey = contextKey("actor")
