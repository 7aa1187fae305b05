package schema

import "time"

// ProfileImage aponta para a foto de perfil de um usuário.
type ProfileImage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	URL         string    `json:"url"`
	StorageKey  string    `json:"storageKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

var ProfileImages = NewMapping("profile_image", "profile_images", "created_at",
	keyCol("id", "id", func(p *ProfileImage) *string { return &p.ID }),
	strCol("userId", "user_id", func(p *ProfileImage) *string { return &p.UserID }),
	strCol("url", "url", func(p *ProfileImage) *string { return &p.URL }),
	strCol("storageKey", "storage_key", func(p *ProfileImage) *string { return &p.StorageKey }),
	strCol("contentType", "content_type", func(p *ProfileImage) *string { return &p.ContentType }),
	int64Col("size", "size", func(p *ProfileImage) *int64 { return &p.Size }),
	createdCol("createdAt", "created_at", func(p *ProfileImage) *time.Time { return &p.CreatedAt }),
)
