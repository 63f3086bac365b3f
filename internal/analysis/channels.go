package analysis

import "fmt"

// ChannelKind says whether a channel carries a probability or a count.
type ChannelKind string

const (
	KindFloat ChannelKind = "float"
	KindInt   ChannelKind = "int"
)

// Channel declares one named result channel.
type Channel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Kind        ChannelKind `json:"kind"`
	// ErrorBarFor names the channel this one is the error bar of, if any.
	ErrorBarFor string `json:"error_bar_for,omitempty"`
}

// CellPrefix is the channel prefix for group g, ROI r.
func CellPrefix(g, r int) string { return fmt.Sprintf("G%dR%d", g, r) }

// PooledPrefix is the channel prefix for ROI r pooled over all groups.
func PooledPrefix(r int) string { return fmt.Sprintf("GaR%d", r) }

func probabilityChannels(prefix string) []Channel {
	return []Channel{
		{Name: prefix + "_p", Description: prefix + " bright prob", Kind: KindFloat},
		{Name: prefix + "_p_upper_err", Description: prefix + " bright prob upper error", Kind: KindFloat},
		{Name: prefix + "_p_lower_err", Description: prefix + " bright prob lower error", Kind: KindFloat},
		{Name: prefix + "_p_avg_err", Description: prefix + " bright prob avg error", Kind: KindFloat, ErrorBarFor: prefix + "_p"},
	}
}

// ChannelNames declares every channel an Output of the given shape emits,
// ROI by ROI: the pooled channels first, then each group's.
func ChannelNames(groups, rois int) []Channel {
	out := make([]Channel, 0, rois*(4+6*groups))
	for r := 0; r < rois; r++ {
		out = append(out, probabilityChannels(PooledPrefix(r))...)
		for g := 0; g < groups; g++ {
			prefix := CellPrefix(g, r)
			out = append(out, probabilityChannels(prefix)...)
			out = append(out,
				Channel{Name: prefix + "_n", Description: prefix + " number of shots", Kind: KindInt},
				Channel{Name: prefix + "_y", Description: prefix + " number of bright shots", Kind: KindInt},
			)
		}
	}
	return out
}

// Channels flattens the output into channel name -> value.
func (o *Output) Channels() map[string]float64 {
	ch := make(map[string]float64, o.ROIs*(4+6*o.Groups))
	for r := 0; r < o.ROIs; r++ {
		p := o.Pooled[r]
		prefix := PooledPrefix(r)
		ch[prefix+"_p"] = p.Median
		ch[prefix+"_p_upper_err"] = p.UpperErr
		ch[prefix+"_p_lower_err"] = p.LowerErr
		ch[prefix+"_p_avg_err"] = p.AvgErr
		for g := 0; g < o.Groups; g++ {
			c := o.Cells[g][r]
			prefix := CellPrefix(g, r)
			ch[prefix+"_p"] = c.Median
			ch[prefix+"_p_upper_err"] = c.UpperErr
			ch[prefix+"_p_lower_err"] = c.LowerErr
			ch[prefix+"_p_avg_err"] = c.AvgErr
			ch[prefix+"_n"] = float64(c.N)
			ch[prefix+"_y"] = float64(c.Y)
		}
	}
	return ch
}
