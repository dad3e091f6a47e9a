package reconcile

// FieldSet selects how a note's record fields are built. It is either
// LegacyFields or CustomFields.
type FieldSet interface {
	fieldSet()
}

// LegacyFields writes only the default model layout.
type LegacyFields struct{}

// CustomFields carries property-mapped fields for a custom model.
type CustomFields map[string]string

func (LegacyFields) fieldSet() {}
func (CustomFields) fieldSet() {}

// BaseFields are the identity, content and config fields every record carries.
type BaseFields struct {
	UUIDType   string
	UUID       string
	Text       string
	Extra      string
	Breadcrumb string
	Config     string
}

// BuildFields returns the record fields for set. Base fields overlay custom
// ones with the same name.
func BuildFields(set FieldSet, base BaseFields) map[string]string {
	fields := make(map[string]string, len(ModelFieldNames))
	if custom, ok := set.(CustomFields); ok {
		for name, value := range custom {
			fields[name] = value
		}
	}
	fields[FieldUUIDType] = base.UUIDType
	fields[FieldUUID] = base.UUID
	fields[FieldText] = base.Text
	fields[FieldExtra] = base.Extra
	fields[FieldBreadcrumb] = base.Breadcrumb
	fields[FieldConfig] = base.Config
	return fields
}
