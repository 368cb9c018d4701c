package units

import "fmt"

const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
	TB = 1000 * GB
)

var decimalAbbrs = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB"}

func scale(size float64, base float64, abbrs []string) (float64, string) {
	i := 0
	for size >= base && i < len(abbrs)-1 {
		size /= base
		i++
	}
	return size, abbrs[i]
}

// HumanSize formats a byte count with decimal units, e.g. 1.5kB.
func HumanSize(size int64) string {
	return HumanSizeWithPrecision(float64(size), 3)
}

func HumanSizeWithPrecision(size float64, precision int) string {
	size, unit := scale(size, 1000.0, decimalAbbrs)
	return fmt.Sprintf("%.*g%s", precision, size, unit)
}
