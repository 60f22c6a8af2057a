// Package audio discovers audiobook files and reads their tags.
package audio
