package models

// TeaDraft is the user-editable state a record form builds before it is
// saved. It only tracks the fields recognition can fill.
type TeaDraft struct {
	Brand string
	Name  string
	Sugar string
	Ice   string
	Price float64

	edited map[string]bool
}

// MergeReport tells the caller what a merge did, so partial recognition can
// be reported field by field.
type MergeReport struct {
	Filled  []string // Set from the recognition result
	Skipped []string // Recognized but kept because the user edited them
	Missing []string // Not recognized at all
}

// SetBrand records a manual edit of the brand.
func (d *TeaDraft) SetBrand(v string) { d.Brand = v; d.markEdited(FieldBrand) }

// SetName records a manual edit of the drink name.
func (d *TeaDraft) SetName(v string) { d.Name = v; d.markEdited(FieldName) }

// SetSugar records a manual edit of the sugar level.
func (d *TeaDraft) SetSugar(v string) { d.Sugar = v; d.markEdited(FieldSugar) }

// SetIce records a manual edit of the ice level.
func (d *TeaDraft) SetIce(v string) { d.Ice = v; d.markEdited(FieldIce) }

// SetPrice records a manual edit of the price.
func (d *TeaDraft) SetPrice(v float64) { d.Price = v; d.markEdited(FieldPrice) }

// Edited reports whether the user changed field by hand.
func (d *TeaDraft) Edited(field string) bool {
	return d.edited[field]
}

func (d *TeaDraft) markEdited(field string) {
	if d.edited == nil {
		d.edited = make(map[string]bool)
	}
	d.edited[field] = true
}

// Merge copies every non-nil field of info into the draft. Hand-edited fields
// are left alone unless force is set, which models an explicit re-scan by
// the user. A forced merge clears the edited flag of fields it overwrites.
func (d *TeaDraft) Merge(info ParsedTeaInfo, force bool) MergeReport {
	var report MergeReport

	apply := func(field string, present bool, set func()) {
		switch {
		case !present:
			report.Missing = append(report.Missing, field)
		case d.edited[field] && !force:
			report.Skipped = append(report.Skipped, field)
		default:
			set()
			delete(d.edited, field)
			report.Filled = append(report.Filled, field)
		}
	}

	apply(FieldBrand, info.Brand != nil, func() { d.Brand = *info.Brand })
	apply(FieldName, info.Name != nil, func() { d.Name = *info.Name })
	apply(FieldSugar, info.Sugar != nil, func() { d.Sugar = *info.Sugar })
	apply(FieldIce, info.Ice != nil, func() { d.Ice = *info.Ice })
	apply(FieldPrice, info.Price != nil, func() { d.Price = *info.Price })

	return report
}
