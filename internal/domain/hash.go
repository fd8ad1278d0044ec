package domain

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentHash строит отпечаток заголовка по title+description+link.
// MD5 совпадает с хешами, уже сохранёнными в таблице headlines.
func ContentHash(title, description, link string) string {
	sum := md5.Sum([]byte(title + description + link))
	return hex.EncodeToString(sum[:])
}

// WithHash возвращает копию заголовка с вычисленным хешем.
func (h Headline) WithHash() Headline {
	h.Hash = ContentHash(h.Title, h.Description, h.Link)
	return h
}
