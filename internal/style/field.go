package style

// FieldKind is the data type of a layer field, as far as literal formatting
// is concerned.
type FieldKind string

const (
	OidField    FieldKind = "oid"
	StringField FieldKind = "string"
	DateField   FieldKind = "date"
	NumberField FieldKind = "number"
	URLField    FieldKind = "url"
)

// FieldMetadata describes one field of a layer's source.
type FieldMetadata struct {
	Name string    `json:"name" required:"true" doc:"Field name" example:"type"`
	Kind FieldKind `json:"kind" required:"true" enum:"oid,string,date,number,url" doc:"Field type" example:"string"`
}

// Fields is the field list of a layer.
type Fields []FieldMetadata

// Lookup returns the metadata of the named field.
func (fs Fields) Lookup(name string) (FieldMetadata, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMetadata{}, false
}
