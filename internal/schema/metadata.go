package schema

import "time"

// MetadataOption é uma opção de lista (contexto ou tipo de dado).
type MetadataOption struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

func metadataMapping(entity, table string) *Mapping[MetadataOption] {
	return NewMapping(entity, table, "created_at",
		keyCol("id", "id", func(m *MetadataOption) *string { return &m.ID }),
		strCol("name", "name", func(m *MetadataOption) *string { return &m.Name }),
		strCol("description", "description", func(m *MetadataOption) *string { return &m.Description }),
		boolCol("active", "active", func(m *MetadataOption) *bool { return &m.Active }),
		createdCol("createdAt", "created_at", func(m *MetadataOption) *time.Time { return &m.CreatedAt }),
	)
}

var (
	MetadataContexts  = metadataMapping("metadata_context", "metadata_contexts")
	MetadataDataTypes = metadataMapping("metadata_data_type", "metadata_data_types")
)
