// Package kmeans implements bounded-iteration k-means clustering used to learn
// the visual-word vocabulary from local image descriptors.
//
// Seeding uses k-means++ driven by a seeded generator, so a given input,
// k and seed always produce the same centroids.
package kmeans
