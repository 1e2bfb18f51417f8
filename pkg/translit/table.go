package translit

// cyrillic maps lower-case Ukrainian and Russian letters to their ASCII
// spelling. Upper-case letters are resolved through their lower-case form.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'ґ': "g", 'д': "d", 'е': "e",
	'є': "e", 'ё': "e", 'ж': "j", 'з': "z", 'і': "i", 'и': "i", 'ї': "yi", 'й': "i",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ы': "y", 'э': "e", 'ю': "u", 'я': "ya",
}

// silent letters are dropped before transliteration.
var silent = map[rune]bool{
	'ъ': true, 'ь': true,
	'Ъ': true, 'Ь': true,
}
