package utils

import "strings"

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".", // Arabic decimal separator
	"٬", "", // Arabic thousands separator
)

// NormalizeDigits converts Persian and Arabic numerals to ASCII so spreadsheet cells parse as numbers
func NormalizeDigits(input string) string {
	return strings.TrimSpace(digitReplacer.Replace(input))
}

var letterReplacer = strings.NewReplacer(
	"ي", "ی", // Arabic Yeh to Farsi Yeh
	"ك", "ک", // Arabic Kaf to Farsi Kaf
	"ة", "ه", // Teh Marbuta to Heh
)

// NormalizeText unifies Arabic/Farsi letter variants so equal city names compare equal
func NormalizeText(input string) string {
	return strings.TrimSpace(letterReplacer.Replace(input))
}
