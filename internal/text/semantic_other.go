package text

import (
	"context"
	"fmt"
	"regexp"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

type citationText struct{ semantic }

func (citationText) Class() gramps.Class { return gramps.ClassCitation }

func (b citationText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	c := obj.(*gramps.Citation)
	out := Plain("## Citation: " + link(c.GrampsID, gramps.ClassCitation, c.GrampsID) + "\n" +
		"This document contains the metadata of a citation, which is a reference to a source. ")

	if c.SourceHandle != "" {
		src, err := gramps.GetSource(ctx, db, c.SourceHandle)
		switch {
		case isNotFound(err):
		case err != nil:
			return none, err
		default:
			line := fmt.Sprintf("It cites the source %s. ", link(sourceTitle(src), gramps.ClassSource, src.GrampsID))
			out = Concat(out, PrivateIf(src.Private, Plain(line)))
		}
	}
	if c.Page != "" {
		out = Concat(out, Plain(fmt.Sprintf("It cites page/volume: %s. ", c.Page)))
	}
	if d := b.date(c.Date); d != "" {
		out = Concat(out, Plain(fmt.Sprintf("The citation's date is %s. ", d)))
	}

	tags, err := b.tags(ctx, db, c, Plain("The citation has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

func sourceTitle(s *gramps.Source) string {
	if s.Title != "" {
		return s.Title
	}
	return s.GrampsID
}

type sourceText struct{ semantic }

func (sourceText) Class() gramps.Class { return gramps.ClassSource }

func (b sourceText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	s := obj.(*gramps.Source)
	out := Plain("## Source: " + link(sourceTitle(s), gramps.ClassSource, s.GrampsID) + "\n")
	if s.Author != "" {
		out = Concat(out, Plain(fmt.Sprintf("The source's author was %s. ", s.Author)))
	}
	if s.PubInfo != "" {
		out = Concat(out, Plain(fmt.Sprintf("Source publication info: %s. ", s.PubInfo)))
	}
	if s.Abbrev != "" {
		out = Concat(out, Plain(fmt.Sprintf("The source is abbreviated as %s. ", s.Abbrev)))
	}

	var repos []PString
	for _, ref := range s.RepoRefs {
		repo, err := gramps.GetRepository(ctx, db, ref.Ref)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return none, err
		}
		line := link(repo.Name, gramps.ClassRepository, repo.GrampsID)
		if ref.CallNumber != "" {
			line += fmt.Sprintf(" (call number %s)", ref.CallNumber)
		}
		repos = append(repos, PrivateIf(ref.Private || repo.Private, Plain(line)))
	}
	out = Concat(out, Wrap(Plain("The source is held in the following repositories: "), Join(", ", repos), Plain(". ")))

	tags, err := b.tags(ctx, db, s, Plain("The source has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

type repositoryText struct{ semantic }

func (repositoryText) Class() gramps.Class { return gramps.ClassRepository }

func (b repositoryText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	r := obj.(*gramps.Repository)
	title := link(r.Name, gramps.ClassRepository, r.GrampsID)
	out := Plain("## Repository: " + title + "\n")
	if r.Type != "" {
		out = Concat(out, Plain(fmt.Sprintf("%s is a repository of type %s. ", title, r.Type)))
	}

	refs, err := db.Backlinks(ctx, r.Handle, gramps.ClassSource)
	if err != nil {
		return none, err
	}
	var sources []PString
	for _, ref := range refs {
		src, err := gramps.GetSource(ctx, db, ref.Handle)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return none, err
		}
		refsPrivate := true
		for _, rr := range src.RepoRefs {
			if rr.Ref == r.Handle && !rr.Private {
				refsPrivate = false
			}
		}
		line := Plain(link(sourceTitle(src), gramps.ClassSource, src.GrampsID))
		sources = append(sources, PrivateIf(src.Private || refsPrivate, line))
	}
	out = Concat(out, Wrap(
		Plain(fmt.Sprintf("The repository %s contains the following sources: ", title)),
		Join(", ", sources),
		Plain(". "),
	))

	tags, err := b.tags(ctx, db, r, Plain(fmt.Sprintf("The repository %s has the following tags in the database: ", title)))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

var newlines = regexp.MustCompile(`\n+`)

type noteText struct{ semantic }

func (noteText) Class() gramps.Class { return gramps.ClassNote }

func (b noteText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	n := obj.(*gramps.Note)
	name := link(n.GrampsID, gramps.ClassNote, n.GrampsID)
	out := Plain("## Note " + name + "\n" +
		"This document contains the contents of the " + link("Note "+n.GrampsID, gramps.ClassNote, n.GrampsID) + ". ")
	if n.Type != "" && n.Type != gramps.NoteTypeGeneral && n.Type != gramps.NoteTypeUnknown {
		out = Concat(out, Plain(fmt.Sprintf("It is a note of type %s. ", n.Type)))
	}
	out = Concat(out, Plain("Contents:\n"+newlines.ReplaceAllString(n.Text, "\n")))

	tags, err := b.tags(ctx, db, n, Plain(" The note has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

type mediaText struct{ semantic }

func (mediaText) Class() gramps.Class { return gramps.ClassMedia }

func (b mediaText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	m := obj.(*gramps.Media)
	label := m.Desc
	if label == "" {
		label = m.GrampsID
	}
	mime := m.Mime
	if mime == "" {
		mime = "unknown"
	}
	out := Plain("## Media object: " + link(label, gramps.ClassMedia, m.GrampsID) + "\n" +
		fmt.Sprintf("This document contains metadata about the media object %s. Its media type is %s. ", label, mime))
	if m.Desc != "" {
		out = Concat(out, Plain(fmt.Sprintf("Its description is: %s. ", m.Desc)))
	}
	if d := b.date(m.Date); d != "" {
		out = Concat(out, Plain(fmt.Sprintf("The media object's date is %s. ", d)))
	}
	if m.Path != "" {
		out = Concat(out, Plain(fmt.Sprintf("Its file path is %s. ", m.Path)))
	}

	tags, err := b.tags(ctx, db, m, Plain("The media object has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}
