// Package tgui holds small text/UI helpers for Telegram bots:
// callback-data encoding, rune-safe truncation and message chunking.
package tgui
