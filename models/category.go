package models

// Category is one of the fixed content classes a discovered page can be
// assigned to. The zero value means the page has not been categorized yet.
type Category string

const (
	CategoryMainCertification Category = "main_certification_pages"
	CategoryApplicationForms  Category = "application_forms"
	CategoryTrainingMaterials Category = "training_materials"
	CategoryAuditGuidelines   Category = "audit_guidelines"
	CategoryFeeStructures     Category = "fee_structures"
	CategoryRegionalOffices   Category = "regional_offices"

	// CategoryUncategorized is the fallback for pages whose best score does
	// not clear the assignment threshold.
	CategoryUncategorized Category = "uncategorized"
)

// Categories returns the six assignable categories in tie-break priority
// order: when two categories score equally, the earlier one wins.
func Categories() []Category {
	return []Category{
		CategoryMainCertification,
		CategoryApplicationForms,
		CategoryAuditGuidelines,
		CategoryTrainingMaterials,
		CategoryFeeStructures,
		CategoryRegionalOffices,
	}
}

// Valid reports whether c is an assignable category or the fallback.
func (c Category) Valid() bool {
	switch c {
	case CategoryMainCertification, CategoryApplicationForms,
		CategoryTrainingMaterials, CategoryAuditGuidelines,
		CategoryFeeStructures, CategoryRegionalOffices,
		CategoryUncategorized:
		return true
	}
	return false
}
