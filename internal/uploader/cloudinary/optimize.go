package cloudinary

import "strings"

// uploadMarker separates the delivery type from the asset path in delivery URLs.
const uploadMarker = "/upload/"

// Transformation asks for automatic format and quality, scaled to 600px wide.
const Transformation = "f_auto,q_auto,c_scale,w_600"

// Optimize inserts the delivery transformation right after the first
// "/upload/" of a delivery URL. URLs without the marker, or that already
// carry the transformation, are returned unchanged.
func Optimize(link string) string {
	i := strings.Index(link, uploadMarker)
	if i < 0 {
		return link
	}
	rest := link[i+len(uploadMarker):]
	if strings.HasPrefix(rest, Transformation+"/") {
		return link
	}
	return link[:i] + uploadMarker + Transformation + "/" + rest
}
