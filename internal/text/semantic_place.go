package text

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

type placeText struct{ semantic }

func (placeText) Class() gramps.Class { return gramps.ClassPlace }

func (b placeText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	p := obj.(*gramps.Place)
	title := link(p.DisplayName(), gramps.ClassPlace, p.GrampsID)

	var sb strings.Builder
	sb.WriteString("## Place: " + title + "\n")
	sb.WriteString("This document contains data about the place " + p.DisplayName() +
		": its place type, geographic location, and enclosing places. ")
	if p.Type != "" {
		fmt.Fprintf(&sb, "%s is a place of type %s. ", title, p.Type)
	}

	var alt []string
	for _, n := range p.AltNames {
		if n.Value != "" {
			alt = append(alt, n.Value)
		}
	}
	if len(alt) > 0 {
		fmt.Fprintf(&sb, "It is also known as: %s. ", strings.Join(alt, ", "))
	}
	if p.Code != "" {
		fmt.Fprintf(&sb, "Its place code is %s. ", p.Code)
	}
	if lat, long, ok := coordinates(p.Lat, p.Long); ok {
		fmt.Fprintf(&sb, "The geographical coordinates (latitude and longitude) of %s are %.4f, %.4f. ", title, lat, long)
	}

	parents, err := placeParents(ctx, db, p)
	if err != nil {
		return none, err
	}
	if parents != "" {
		fmt.Fprintf(&sb, "%s is part of %s. ", title, parents)
	}

	tags, err := b.tags(ctx, db, p, Plain(fmt.Sprintf("The place %s has the following tags in the database: ", title)))
	if err != nil {
		return none, err
	}
	return Concat(Plain(sb.String()), tags), nil
}

// coordinates parses decimal latitude and longitude. Other notations
// are not rendered.
func coordinates(lat, long string) (float64, float64, bool) {
	if lat == "" || long == "" {
		return 0, 0, false
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || la < -90 || la > 90 {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(long), 64)
	if err != nil || lo < -180 || lo > 180 {
		return 0, 0, false
	}
	return la, lo, true
}
