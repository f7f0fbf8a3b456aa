// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model_test

import (
	"time"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

var _ = Describe("ResourceHistory", func() {
	var (
		loc     locators.Locator
		history *model.ResourceHistory
		t0      time.Time
	)

	BeforeEach(func() {
		loc = &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"README.md"}}
		t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var err error
		history, err = model.NewResourceHistory(model.ResourceDelta{
			RefreshedAt: t0,
			Locator:     loc,
			Metadata: model.MetadataDelta{
				Name:     model.Set("README.md"),
				MimeType: model.Set[ident.MimeType]("text/markdown"),
			},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a first delta without a locator", func() {
		_, err := model.NewResourceHistory(model.ResourceDelta{RefreshedAt: t0})
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(model.IngestionError("")))
	})

	It("merges to a view with the locator", func() {
		view := history.Merged()
		Expect(view.Locator).To(Equal(loc))
		Expect(view.Metadata.Name.OrElse("")).To(Equal("README.md"))
	})

	It("elides no-op updates", func() {
		changed, err := history.Update(model.ResourceDelta{
			RefreshedAt: t0.Add(time.Hour),
			Metadata:    model.MetadataDelta{Name: model.Set("README.md")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(history.Deltas()).To(HaveLen(1))
	})

	It("appends the same delta at most once", func() {
		d := model.ResourceDelta{
			RefreshedAt: t0.Add(time.Hour),
			Metadata:    model.MetadataDelta{Description: model.Set("a readme")},
		}
		changed, err := history.Update(d)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		changed, err = history.Update(d)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(history.Deltas()).To(HaveLen(2))
	})

	It("applies last-writer-wins with set-to-null clearing", func() {
		_, err := history.Update(model.ResourceDelta{
			RefreshedAt: t0.Add(time.Hour),
			Metadata:    model.MetadataDelta{Description: model.Set("first")},
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = history.Update(model.ResourceDelta{
			RefreshedAt: t0.Add(2 * time.Hour),
			Metadata:    model.MetadataDelta{Description: model.Null[string]()},
		})
		Expect(err).NotTo(HaveOccurred())
		view := history.Merged()
		Expect(view.Metadata.Description.IsSet()).To(BeTrue())
		Expect(view.Metadata.Description.IsNull()).To(BeTrue())
		_, ok := view.Metadata.Description.Value()
		Expect(ok).To(BeFalse())
	})

	Describe("expiry tracking", func() {
		It("clears an expiry when the observable is observed later", func() {
			_, err := history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(time.Hour),
				Expired:     []uri.Affordance{uri.AffordanceBody, uri.AffordanceCollection},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Merged().Expired).To(ConsistOf(uri.AffordanceBody, uri.AffordanceCollection))

			_, err = history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(2 * time.Hour),
				Observed: []model.ObservedDelta{
					{Affordance: uri.AffordanceBody, Sections: model.Set([]string{"intro"})},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Merged().Expired).To(ConsistOf(uri.AffordanceCollection))
		})
	})

	Describe("labels", func() {
		It("keeps the latest value per (name, target) and honors reset", func() {
			_, err := history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(time.Hour),
				Labels: []model.Label{
					{Name: "description", Value: "v1"},
					{Name: "description", Target: "$body", Value: "body-v1"},
					{Name: "description", Value: "v2"},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			view := history.Merged()
			Expect(view.Labels).To(HaveLen(2))
			Expect(view.Labels[0].Value).To(Equal("v2"))
			Expect(view.Labels[1].Value).To(Equal("body-v1"))

			_, err = history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(2 * time.Hour),
				ResetLabels: true,
				Labels:      []model.Label{{Name: "summary", Value: "only"}},
			})
			Expect(err).NotTo(HaveOccurred())
			view = history.Merged()
			Expect(view.Labels).To(HaveLen(1))
			Expect(view.Labels[0].Name).To(Equal("summary"))
		})
	})

	Describe("affordance infos", func() {
		It("concatenates metadata- and observation-declared infos with later-wins per key", func() {
			_, err := history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(time.Hour),
				Metadata: model.MetadataDelta{
					Affordances: model.Set([]model.AffordanceInfo{
						{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
						{Affordance: uri.AffordancePlain},
					}),
				},
				Observed: []model.ObservedDelta{
					{Affordance: uri.AffordanceBody, Sections: model.Set([]string{"intro", "usage"})},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			infos := history.Merged().Affordances()
			Expect(infos).To(HaveLen(2))
			Expect(infos[0].Affordance).To(Equal(uri.AffordanceBody))
			Expect(infos[0].MimeType.OrElse("")).To(Equal(ident.MimeType("text/markdown")))
			Expect(infos[0].Sections.OrElse(nil)).To(Equal([]string{"intro", "usage"}))
			Expect(history.Merged().SupportsAffordance(uri.AffordancePlain)).To(BeTrue())
			Expect(history.Merged().SupportsAffordance(uri.AffordanceFile)).To(BeFalse())
		})
	})

	Describe("persistence", func() {
		It("round-trips through YAML with the locator envelope", func() {
			_, err := history.Update(model.ResourceDelta{
				RefreshedAt: t0.Add(time.Hour),
				Labels:      []model.Label{{Name: "description", Value: "a readme"}},
				Observed: []model.ObservedDelta{
					{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			data, err := yaml.Marshal(history)
			Expect(err).NotTo(HaveOccurred())

			var restored model.ResourceHistory
			Expect(yaml.Unmarshal(data, &restored)).To(Succeed())
			Expect(restored.Deltas()).To(HaveLen(len(history.Deltas())))
			Expect(restored.Merged().Locator).To(Equal(loc))
			Expect(restored.Merged().Labels).To(Equal(history.Merged().Labels))
		})

		It("rejects a persisted history whose first delta has no locator", func() {
			var restored model.ResourceHistory
			err := yaml.Unmarshal([]byte("history:\n- refreshed_at: 2024-03-01T12:00:00Z\n"), &restored)
			Expect(err).To(HaveOccurred())
		})
	})
})
