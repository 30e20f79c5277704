package region

// Dataset is the ordered, immutable set of region records for one page view.
type Dataset struct {
	records []Record
	byID    map[string]int
}

// NewDataset copies records into a Dataset. Record order is preserved; on a
// duplicate ID the first record wins the ID index.
func NewDataset(records []Record) *Dataset {
	d := &Dataset{
		records: make([]Record, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	copy(d.records, records)
	for i := range d.records {
		if _, dup := d.byID[d.records[i].ID]; !dup {
			d.byID[d.records[i].ID] = i
		}
	}
	return d
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns the record at index i. The pointer is stable for the dataset's lifetime.
func (d *Dataset) At(i int) *Record {
	return &d.records[i]
}

// ByID looks up a record by its opaque ID.
func (d *Dataset) ByID(id string) (*Record, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &d.records[i], true
}

// Records returns a copy of the records in dataset order.
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}
