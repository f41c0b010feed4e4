package ink

import "strconv"

func formatInt(v int32) string     { return strconv.FormatInt(int64(v), 10) }
func formatUint32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
