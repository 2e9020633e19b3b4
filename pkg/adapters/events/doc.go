// Package events provides run progress event bus implementations.
package events
