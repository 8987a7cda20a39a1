package models

// User - запись справочника пользователей. Таблицу ведет сервис идентификации,
// здесь она только читается.
type User struct {
	BaseModel
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Role      UserRole   `gorm:"type:varchar(20);not null" json:"role"`
	Status    UserStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Location возвращает nil, если позиция не зарегистрирована
func (u *User) Location() *Location {
	if u.Latitude == nil || u.Longitude == nil {
		return nil
	}
	return &Location{Latitude: *u.Latitude, Longitude: *u.Longitude}
}

func (u *User) ContactInfo() string {
	if u.Phone != "" {
		return u.Phone
	}
	return u.Email
}
