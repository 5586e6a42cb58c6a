package dataset

// View is a derived, possibly empty subset of a dataset. It holds record
// positions only; the dataset it points into is never modified.
type View struct {
	ds  *Dataset
	idx []int
}

// All returns a view over every record of ds.
func All(ds *Dataset) View {
	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{ds: ds, idx: idx}
}

// Select returns the view of records accepted by keep. The first error
// from keep aborts the selection.
func Select(ds *Dataset, keep func(Record) (bool, error)) (View, error) {
	idx := make([]int, 0, ds.Len())
	for i, r := range ds.records {
		ok, err := keep(r)
		if err != nil {
			return View{}, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return View{ds: ds, idx: idx}, nil
}

func (v View) Dataset() *Dataset { return v.ds }
func (v View) Len() int          { return len(v.idx) }
func (v View) IsZero() bool      { return v.ds == nil }

func (v View) Record(i int) Record { return v.ds.records[v.idx[i]] }

// Records returns the records of the view in dataset order.
func (v View) Records() []Record {
	out := make([]Record, len(v.idx))
	for i, j := range v.idx {
		out[i] = v.ds.records[j]
	}
	return out
}

// Head returns a view of the first n records.
func (v View) Head(n int) View {
	if n < 0 || n > len(v.idx) {
		n = len(v.idx)
	}
	return View{ds: v.ds, idx: v.idx[:n:n]}
}
