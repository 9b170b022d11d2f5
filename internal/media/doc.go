// Package media defines the shared vocabulary of the transcoder: coded
// packets, decoded frame buffers and their descriptors, codec parameters,
// rational time bases and the error taxonomy used by every layer from
// container reading through output wrapping.
package media
